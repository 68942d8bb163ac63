package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"scoutcore/pkg/domain"
)

func stock(v float64) *float64 { return &v }

func seedProject(t *testing.T, store *Store) string {
	t.Helper()
	var id string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		p, err := tx.CreateProject(domain.Project{
			Name:        "gradient screen",
			FinalVolume: 150,
			Factors: []domain.Factor{
				{Name: "NaCl", Levels: []string{"50", "100"}, Stock: stock(1000)},
			},
		})
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	projectID := seedProject(t, store)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateDesign(domain.DesignRecord{ProjectID: projectID, FinalVolume: 150})
		return e
	}); err != nil {
		t.Fatalf("create design: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(reloaded.ListProjects()); got != 1 {
		t.Fatalf("expected 1 project, got %d", got)
	}
	if got := len(reloaded.ListDesignsByProject(projectID)); got != 1 {
		t.Fatalf("expected 1 design, got %d", got)
	}
	if reloaded.Path() != path {
		t.Fatalf("expected path %q, got %q", path, reloaded.Path())
	}
}

func TestSQLiteStoreCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Path() != path {
		t.Fatalf("expected nested path creation, got %q", store.Path())
	}
}

func TestSQLiteStoreAppliesReferenceDDL(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, table := range []string{"projects", "designs"} {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name= ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
		if name != table {
			t.Fatalf("expected %s table, got %s", table, name)
		}
	}
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "load.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	seedProject(t, store)

	if _, err := store.DB().Exec(`INSERT OR REPLACE INTO state(bucket,payload) VALUES(?,?)`, "projects", []byte("not-json")); err != nil {
		t.Fatalf("inject invalid state: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	if _, err := NewStore(path, domain.NewRulesEngine()); err == nil {
		t.Fatalf("expected load error for invalid payload")
	} else if !strings.Contains(err.Error(), "decode projects") {
		t.Fatalf("expected decode projects error, got %v", err)
	}
}

func TestSQLiteStoreBlockedTransactionDoesNotPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked.db")
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store, err := NewStore(path, engine)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateProject(domain.Project{Name: "blocked"})
		return e
	}); err == nil {
		t.Fatalf("expected rule violation")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(reloaded.ListProjects()); got != 0 {
		t.Fatalf("blocked transaction must not persist, got %d projects", got)
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock}}}, nil
}
