package core

import "scoutcore/internal/infra/persistence/memory"

// NewMemoryStore constructs an in-memory persistent store with the provided
// rules engine. Suited to tests and ephemeral tooling; nothing survives
// process exit.
func NewMemoryStore(engine *RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}
