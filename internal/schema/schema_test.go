package schema_test

import (
	"strings"
	"testing"

	"scoutcore/internal/schema"
)

func TestSplitStatementsDropsCommentsAndBlankLines(t *testing.T) {
	ddl := `-- header comment

CREATE TABLE a (
    id TEXT PRIMARY KEY
);

-- trailing note
CREATE INDEX idx_a ON a(id);
PRAGMA user_version = 1`

	stmts := schema.SplitStatements(ddl)
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") || !strings.HasSuffix(strings.TrimSpace(stmts[0]), ";") {
		t.Fatalf("first statement malformed: %q", stmts[0])
	}
	if stmts[2] != "PRAGMA user_version = 1" {
		t.Fatalf("unterminated tail = %q, want the pragma", stmts[2])
	}
	for _, stmt := range stmts {
		if strings.Contains(stmt, "--") {
			t.Fatalf("statement retains comment: %q", stmt)
		}
	}
}

func TestReferenceBundlesSplitCleanly(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": schema.SQLite(), "postgres": schema.Postgres()} {
		stmts := schema.SplitStatements(ddl)
		if len(stmts) != 3 {
			t.Fatalf("%s: statements = %d, want projects, designs and the index", name, len(stmts))
		}
		joined := strings.Join(stmts, "\n")
		for _, table := range []string{"projects", "designs", "idx_designs_project"} {
			if !strings.Contains(joined, table) {
				t.Fatalf("%s bundle missing %s", name, table)
			}
		}
	}
}
