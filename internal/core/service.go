// Package core wires the factorial design engine to persistence, rule
// evaluation, and observability. It exposes the transactional service that
// HTTP adapters and commands build on.
package core

import (
	"context"
	"sort"
	"time"

	"scoutcore/pkg/domain"
)

// DefaultFinalVolume is applied when a project is created without an explicit
// per-well final volume (microliters).
const DefaultFinalVolume = domain.DefaultFinalVolume

// Operation names shared by metrics, traces, and audit entries.
const (
	opCreateProject = "create_project"
	opUpdateProject = "update_project"
	opDeleteProject = "delete_project"
	opAddFactor     = "add_factor"
	opUpdateFactor  = "update_factor"
	opRemoveFactor  = "remove_factor"
	opBuildDesign   = "build_design"
	opDeleteDesign  = "delete_design"
)

type auditMetadata struct {
	entity EntityType
	action Action
}

var auditOperations = map[string]auditMetadata{
	opCreateProject: {entity: EntityProject, action: ActionCreate},
	opUpdateProject: {entity: EntityProject, action: ActionUpdate},
	opDeleteProject: {entity: EntityProject, action: ActionDelete},
	opAddFactor:     {entity: EntityFactor, action: ActionCreate},
	opUpdateFactor:  {entity: EntityFactor, action: ActionUpdate},
	opRemoveFactor:  {entity: EntityFactor, action: ActionDelete},
	opBuildDesign:   {entity: EntityDesign, action: ActionCreate},
	opDeleteDesign:  {entity: EntityDesign, action: ActionDelete},
}

// Service exposes higher-level transactional operations for projects and
// their factorial designs.
type Service struct {
	store   PersistentStore
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	nowFn   func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger overrides the no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder overrides the no-op audit recorder.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder overrides the no-op metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer overrides the no-op tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the service time source used for audit timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.nowFn = selectNowFunc(store, svc.clock)
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine installs the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// selectNowFunc prefers the store's own time provider so audit timestamps and
// persisted CreatedAt/UpdatedAt values stay aligned, then the configured
// clock, then the system clock. All results are UTC.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	type nowProvider interface {
		NowFunc() func() time.Time
	}
	if provider, ok := store.(nowProvider); ok {
		if provider.NowFunc() != nil {
			return func() time.Time { return provider.NowFunc()().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// run executes fn in a store transaction wrapped with tracing, metrics, and
// logging. Audit success entries are recorded by the callers once the created
// or mutated entity ID is known.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Result, time.Duration, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	took := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, took)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
		s.recordAuditError(ctx, op, err, took)
		return res, took, err
	}
	s.logger.Info("operation applied", "operation", op, "duration_ms", took.Seconds()*1e3)
	return res, took, nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, took time.Duration) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  took,
		Timestamp: s.nowFn(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, op string, opErr error, took time.Duration) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		Status:    AuditStatusError,
		Error:     opErr.Error(),
		Duration:  took,
		Timestamp: s.nowFn(),
	})
}

// CreateProject persists a new project. A zero final volume defaults to
// DefaultFinalVolume; factors supplied inline are validated as a set.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, Result, error) {
	var created Project
	res, took, err := s.run(ctx, opCreateProject, func(tx Transaction) error {
		if project.Name == "" {
			return domain.ValidationError{Field: "name", Message: "project name is required"}
		}
		if project.FinalVolume == 0 {
			project.FinalVolume = DefaultFinalVolume
		}
		if project.FinalVolume < 0 {
			return domain.ValidationError{Field: "final_volume", Message: "final volume must be positive"}
		}
		if len(project.Factors) > 0 {
			set, err := domain.NewFactorSetFrom(project.Factors)
			if err != nil {
				return err
			}
			project.Factors = set.Factors()
		}
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.recordAuditSuccess(ctx, opCreateProject, created.ID, took)
	return created, res, nil
}

// UpdateProject mutates a project using the provided mutator.
func (s *Service) UpdateProject(ctx context.Context, id string, mutator func(*Project) error) (Project, Result, error) {
	var updated Project
	res, took, err := s.run(ctx, opUpdateProject, func(tx Transaction) error {
		if _, ok := tx.FindProject(id); !ok {
			return ErrNotFound{Entity: EntityProject, ID: id}
		}
		var err error
		updated, err = tx.UpdateProject(id, func(p *Project) error {
			if err := mutator(p); err != nil {
				return err
			}
			if p.Name == "" {
				return domain.ValidationError{Field: "name", Message: "project name is required"}
			}
			if p.FinalVolume <= 0 {
				return domain.ValidationError{Field: "final_volume", Message: "final volume must be positive"}
			}
			set, err := domain.NewFactorSetFrom(p.Factors)
			if err != nil {
				return err
			}
			p.Factors = set.Factors()
			return nil
		})
		return err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.recordAuditSuccess(ctx, opUpdateProject, updated.ID, took)
	return updated, res, nil
}

// DeleteProject removes a project and its persisted designs.
func (s *Service) DeleteProject(ctx context.Context, id string) (Result, error) {
	res, took, err := s.run(ctx, opDeleteProject, func(tx Transaction) error {
		if _, ok := tx.FindProject(id); !ok {
			return ErrNotFound{Entity: EntityProject, ID: id}
		}
		for _, design := range tx.Snapshot().ListDesigns() {
			if design.ProjectID != id {
				continue
			}
			if err := tx.DeleteDesign(design.ID); err != nil {
				return err
			}
		}
		return tx.DeleteProject(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteProject, id, took)
	return res, nil
}

// GetProject retrieves a project by ID from committed state.
func (s *Service) GetProject(id string) (Project, error) {
	project, ok := s.store.GetProject(id)
	if !ok {
		return Project{}, ErrNotFound{Entity: EntityProject, ID: id}
	}
	return project, nil
}

// ListProjects returns all projects ordered by creation time, then ID.
func (s *Service) ListProjects() []Project {
	projects := s.store.ListProjects()
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects
}

// AddFactor appends a factor to the project's ordered set.
func (s *Service) AddFactor(ctx context.Context, projectID string, factor Factor) (Project, Result, error) {
	var updated Project
	res, took, err := s.run(ctx, opAddFactor, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *Project) error {
			set, err := domain.NewFactorSetFrom(p.Factors)
			if err != nil {
				return err
			}
			if err := set.Add(factor.Name, factor.Levels, factor.Stock); err != nil {
				return err
			}
			p.Factors = set.Factors()
			return nil
		})
		return err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.recordAuditSuccess(ctx, opAddFactor, projectID, took)
	return updated, res, nil
}

// UpdateFactor replaces the named factor's definition in place, preserving
// its position in the enumeration order.
func (s *Service) UpdateFactor(ctx context.Context, projectID string, factor Factor) (Project, Result, error) {
	var updated Project
	res, took, err := s.run(ctx, opUpdateFactor, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *Project) error {
			set, err := domain.NewFactorSetFrom(p.Factors)
			if err != nil {
				return err
			}
			if err := set.Update(factor.Name, factor.Levels, factor.Stock); err != nil {
				return err
			}
			p.Factors = set.Factors()
			return nil
		})
		return err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.recordAuditSuccess(ctx, opUpdateFactor, projectID, took)
	return updated, res, nil
}

// RemoveFactor deletes the named factor; absent names are a no-op.
func (s *Service) RemoveFactor(ctx context.Context, projectID, name string) (Project, Result, error) {
	var updated Project
	res, took, err := s.run(ctx, opRemoveFactor, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *Project) error {
			set, err := domain.NewFactorSetFrom(p.Factors)
			if err != nil {
				return err
			}
			set.Remove(name)
			p.Factors = set.Factors()
			return nil
		})
		return err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.recordAuditSuccess(ctx, opRemoveFactor, projectID, took)
	return updated, res, nil
}

// BuildDesign enumerates the project's full factorial design, computes both
// output tables, and persists the result as an immutable design record.
func (s *Service) BuildDesign(ctx context.Context, projectID string, opts BuildOptions) (DesignRecord, Result, error) {
	var record DesignRecord
	res, took, err := s.run(ctx, opBuildDesign, func(tx Transaction) error {
		project, ok := tx.FindProject(projectID)
		if !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		set, err := domain.NewFactorSetFrom(project.Factors)
		if err != nil {
			return err
		}
		tables, err := domain.BuildDesign(set, project.FinalVolume, opts)
		if err != nil {
			return err
		}
		combinations := len(tables.TrackingRows)
		record = DesignRecord{
			ProjectID:    projectID,
			FinalVolume:  project.FinalVolume,
			Combinations: combinations,
			Plates:       domain.PlatesFor(combinations),
			Tables:       tables,
			Strict:       opts.Strict,
		}
		record, err = tx.CreateDesign(record)
		return err
	})
	if err != nil {
		return DesignRecord{}, res, err
	}
	s.recordAuditSuccess(ctx, opBuildDesign, record.ID, took)
	return record, res, nil
}

// DeleteDesign removes a persisted design record.
func (s *Service) DeleteDesign(ctx context.Context, id string) (Result, error) {
	res, took, err := s.run(ctx, opDeleteDesign, func(tx Transaction) error {
		if _, ok := tx.FindDesign(id); !ok {
			return ErrNotFound{Entity: EntityDesign, ID: id}
		}
		return tx.DeleteDesign(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteDesign, id, took)
	return res, nil
}

// GetDesign retrieves a design record by ID from committed state.
func (s *Service) GetDesign(id string) (DesignRecord, error) {
	design, ok := s.store.GetDesign(id)
	if !ok {
		return DesignRecord{}, ErrNotFound{Entity: EntityDesign, ID: id}
	}
	return design, nil
}

// ListDesigns returns all design records ordered by creation time, then ID.
func (s *Service) ListDesigns() []DesignRecord {
	return sortDesigns(s.store.ListDesigns())
}

// ListDesignsByProject returns the project's design records ordered by
// creation time, then ID.
func (s *Service) ListDesignsByProject(projectID string) []DesignRecord {
	return sortDesigns(s.store.ListDesignsByProject(projectID))
}

func sortDesigns(designs []DesignRecord) []DesignRecord {
	sort.Slice(designs, func(i, j int) bool {
		if !designs[i].CreatedAt.Equal(designs[j].CreatedAt) {
			return designs[i].CreatedAt.Before(designs[j].CreatedAt)
		}
		return designs[i].ID < designs[j].ID
	})
	return designs
}
