package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	DeleteProject(id string) error
	CreateDesign(DesignRecord) (DesignRecord, error)
	DeleteDesign(id string) error
	FindProject(id string) (Project, bool)
	FindDesign(id string) (DesignRecord, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListProjects() []Project
	ListDesigns() []DesignRecord
	FindProject(id string) (Project, bool)
	FindDesign(id string) (DesignRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProject(id string) (Project, bool)
	ListProjects() []Project
	GetDesign(id string) (DesignRecord, bool)
	ListDesigns() []DesignRecord
	ListDesignsByProject(projectID string) []DesignRecord
}
