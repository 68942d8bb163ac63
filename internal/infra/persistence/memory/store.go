// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"scoutcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Project aliases domain.Project for in-memory persistence operations.
	Project = domain.Project
	// DesignRecord aliases domain.DesignRecord.
	DesignRecord = domain.DesignRecord
	// Factor aliases domain.Factor embedded in projects.
	Factor = domain.Factor
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	projects map[string]Project
	designs  map[string]DesignRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Projects map[string]Project      `json:"projects"`
	Designs  map[string]DesignRecord `json:"designs"`
}

func newMemoryState() memoryState {
	return memoryState{
		projects: make(map[string]Project),
		designs:  make(map[string]DesignRecord),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Projects: make(map[string]Project, len(state.projects)),
		Designs:  make(map[string]DesignRecord, len(state.designs)),
	}
	for k, v := range state.projects {
		s.Projects[k] = cloneProject(v)
	}
	for k, v := range state.designs {
		s.Designs[k] = cloneDesign(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range s.Designs {
		state.designs[k] = cloneDesign(v)
	}
	return state
}

// migrateSnapshot normalizes snapshots written by older builds: nil maps are
// initialized, orphaned designs are dropped, and derived design counters are
// recomputed from the stored tables.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Projects == nil {
		snapshot.Projects = map[string]Project{}
	}
	if snapshot.Designs == nil {
		snapshot.Designs = map[string]DesignRecord{}
	}

	projectExists := func(id string) bool {
		_, ok := snapshot.Projects[id]
		return ok
	}

	for id, project := range snapshot.Projects {
		if project.FinalVolume <= 0 {
			project.FinalVolume = domain.DefaultFinalVolume
		}
		snapshot.Projects[id] = project
	}

	for id, design := range snapshot.Designs {
		if design.ProjectID == "" || !projectExists(design.ProjectID) {
			delete(snapshot.Designs, id)
			continue
		}
		design.Combinations = len(design.Tables.TrackingRows)
		design.Plates = domain.PlatesFor(design.Combinations)
		snapshot.Designs[id] = design
	}

	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.designs {
		cloned.designs[k] = cloneDesign(v)
	}
	return cloned
}

func cloneProject(p Project) Project {
	cp := p
	if p.Description != nil {
		desc := *p.Description
		cp.Description = &desc
	}
	if len(p.Factors) != 0 {
		cp.Factors = make([]Factor, len(p.Factors))
		for i, f := range p.Factors {
			cp.Factors[i] = cloneFactor(f)
		}
	}
	return cp
}

func cloneFactor(f Factor) Factor {
	cp := f
	cp.Levels = append([]string(nil), f.Levels...)
	if f.Stock != nil {
		stock := *f.Stock
		cp.Stock = &stock
	}
	return cp
}

func cloneDesign(d DesignRecord) DesignRecord {
	cp := d
	cp.Tables = domain.DesignTables{
		TrackingHeaders: append([]string(nil), d.Tables.TrackingHeaders...),
		TrackingRows:    cloneStringRows(d.Tables.TrackingRows),
		VolumeHeaders:   append([]string(nil), d.Tables.VolumeHeaders...),
		VolumeRows:      cloneFloatRows(d.Tables.VolumeRows),
	}
	return cp
}

func cloneStringRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func cloneFloatRows(rows [][]float64) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Store is the in-memory persistence backend. All reads and writes work on
// defensive clones, so callers never alias internal state.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the store time provider. Tests use it to pin
// timestamps; a nil fn restores the system clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to
// rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProjects returns all projects within the transaction snapshot.
func (v transactionView) ListProjects() []Project {
	out := make([]Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// ListDesigns returns all design records within the transaction snapshot.
func (v transactionView) ListDesigns() []DesignRecord {
	out := make([]DesignRecord, 0, len(v.state.designs))
	for _, d := range v.state.designs {
		out = append(out, cloneDesign(d))
	}
	return out
}

// FindProject retrieves a project by ID from the snapshot.
func (v transactionView) FindProject(id string) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindDesign retrieves a design record by ID from the snapshot.
func (v transactionView) FindDesign(id string) (DesignRecord, bool) {
	d, ok := v.state.designs[id]
	if !ok {
		return DesignRecord{}, false
	}
	return cloneDesign(d), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProject exposes project lookup within the transaction scope.
func (tx *transaction) FindProject(id string) (Project, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindDesign exposes design lookup within the transaction scope.
func (tx *transaction) FindDesign(id string) (DesignRecord, bool) {
	d, ok := tx.state.designs[id]
	if !ok {
		return DesignRecord{}, false
	}
	return cloneDesign(d), true
}

// CreateProject stores a new project within the transaction.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return Project{}, fmt.Errorf("project %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project using the provided mutator function.
func (tx *transaction) UpdateProject(id string, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project %q not found", id)
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project from the transaction state. Designs built
// from the project must be deleted first.
func (tx *transaction) DeleteProject(id string) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return fmt.Errorf("project %q not found", id)
	}
	for _, design := range tx.state.designs {
		if design.ProjectID == id {
			return fmt.Errorf("project %q still referenced by design %q", id, design.ID)
		}
	}
	delete(tx.state.projects, id)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// CreateDesign stores a built design record. Records are immutable; there is
// no update counterpart.
func (tx *transaction) CreateDesign(d DesignRecord) (DesignRecord, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.designs[d.ID]; exists {
		return DesignRecord{}, fmt.Errorf("design %q already exists", d.ID)
	}
	if d.ProjectID == "" {
		return DesignRecord{}, fmt.Errorf("design %q has no project", d.ID)
	}
	if _, ok := tx.state.projects[d.ProjectID]; !ok {
		return DesignRecord{}, fmt.Errorf("design %q references unknown project %q", d.ID, d.ProjectID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.designs[d.ID] = cloneDesign(d)
	tx.recordChange(Change{Entity: domain.EntityDesign, Action: domain.ActionCreate, After: cloneDesign(d)})
	return cloneDesign(d), nil
}

// DeleteDesign removes a design record from the transaction state.
func (tx *transaction) DeleteDesign(id string) error {
	current, ok := tx.state.designs[id]
	if !ok {
		return fmt.Errorf("design %q not found", id)
	}
	delete(tx.state.designs, id)
	tx.recordChange(Change{Entity: domain.EntityDesign, Action: domain.ActionDelete, Before: cloneDesign(current)})
	return nil
}

// GetProject retrieves a project by ID from committed state.
func (s *Store) GetProject(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects from committed state.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.state.projects))
	for _, p := range s.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// GetDesign retrieves a design record by ID from committed state.
func (s *Store) GetDesign(id string) (DesignRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.designs[id]
	if !ok {
		return DesignRecord{}, false
	}
	return cloneDesign(d), true
}

// ListDesigns returns all design records from committed state.
func (s *Store) ListDesigns() []DesignRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DesignRecord, 0, len(s.state.designs))
	for _, d := range s.state.designs {
		out = append(out, cloneDesign(d))
	}
	return out
}

// ListDesignsByProject returns the committed design records built from one
// project.
func (s *Store) ListDesignsByProject(projectID string) []DesignRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DesignRecord, 0)
	for _, d := range s.state.designs {
		if d.ProjectID != projectID {
			continue
		}
		out = append(out, cloneDesign(d))
	}
	return out
}
