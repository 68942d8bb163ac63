package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// recordingTB captures Fatalf calls so assertion failures can be inspected
// instead of aborting the test.
type recordingTB struct {
	testing.TB
	fatals []string
}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.fatals = append(r.fatals, fmt.Sprintf(format, args...))
}

func TestDomainImportForbidden(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"scoutcore/pkg/domain", true},
		{"example.com/mod/pkg/domain", true},
		{"example.com/mod/pkg/domain@v1", true},
		{"example.com/mod/pkg/domainx", false},
		{"scoutcore/internal/core", false},
	}
	for _, c := range cases {
		if got := DomainImportForbidden(c.path); got != c.want {
			t.Errorf("DomainImportForbidden(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestInternalImportForbidden(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"scoutcore/internal/infra/blob", true},
		{"example.com/mod/internal/x", true},
		{"scoutcore/pkg/designapi", false},
		{"internal/poll", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.path); got != c.want {
			t.Errorf("InternalImportForbidden(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestDirectImportViolationsScansOnlyPackageSources(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"use.go":      "package tmp\n\nimport (\n\t\"fmt\"\n\t_ \"scoutcore/internal/infra/blob\"\n)\n\nfunc use() { fmt.Println() }\n",
		"use_test.go": "package tmp\n\nimport _ \"scoutcore/internal/infra/blob\"\n",
		"notes.txt":   "not a source file",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("violations = %v, want only the import from use.go", viols)
	}
	if !strings.Contains(viols[0], "use.go") {
		t.Fatalf("violation %q does not name the offending file", viols[0])
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	src := "package tmp\n\nimport \"fmt\"\n\nfunc use() { fmt.Println() }\n"
	if err := os.WriteFile(filepath.Join(dir, "use.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, InternalImportForbidden, "no infra imports")
}

func TestTransitiveDependencyViolationsTrimsListOutput(t *testing.T) {
	restore := goListDeps
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\n\n  scoutcore/pkg/domain  \nscoutcore/internal/core\n"), nil
	}
	defer func() { goListDeps = restore }()

	viols, _, err := transitiveDependencyViolations("./...", DomainImportForbidden)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(viols) != 1 || viols[0] != "scoutcore/pkg/domain" {
		t.Fatalf("violations = %v, want the trimmed domain path", viols)
	}
}

func TestAssertNoTransitiveDependencyReportsViolations(t *testing.T) {
	restore := goListDeps
	goListDeps = func(string) ([]byte, error) { return []byte("scoutcore/pkg/domain\n"), nil }
	defer func() { goListDeps = restore }()

	rec := &recordingTB{TB: t}
	AssertNoTransitiveDependency(rec, "./...", DomainImportForbidden, "contract stays dependency-free")
	if len(rec.fatals) != 1 {
		t.Fatalf("fatals = %v, want exactly one", rec.fatals)
	}
	if !strings.Contains(rec.fatals[0], "contract stays dependency-free") || !strings.Contains(rec.fatals[0], "scoutcore/pkg/domain") {
		t.Fatalf("failure %q missing reason or path", rec.fatals[0])
	}
}

func TestAssertNoTransitiveDependencyReportsListErrors(t *testing.T) {
	restore := goListDeps
	goListDeps = func(string) ([]byte, error) { return []byte("boom"), fmt.Errorf("exit status 1") }
	defer func() { goListDeps = restore }()

	rec := &recordingTB{TB: t}
	AssertNoTransitiveDependency(rec, "./...", DomainImportForbidden, "contract stays dependency-free")
	if len(rec.fatals) != 1 || !strings.Contains(rec.fatals[0], "go list failed") {
		t.Fatalf("fatals = %v, want a go list failure", rec.fatals)
	}
}

func pkgWithImports(path string, imports ...string) *packages.Package {
	m := make(map[string]*packages.Package, len(imports))
	for _, ip := range imports {
		m[ip] = &packages.Package{PkgPath: ip}
	}
	return &packages.Package{PkgPath: path, Imports: m}
}

func TestBoundaryViolations(t *testing.T) {
	const restricted = "scoutcore/internal/infra/blob"
	pkgs := []*packages.Package{
		pkgWithImports("scoutcore/internal/blob", restricted),
		pkgWithImports("scoutcore/internal/blob.test", restricted),
		pkgWithImports(restricted+"/s3", restricted),
		pkgWithImports("scoutcore/cmd/scoutd", restricted, restricted+"/s3"),
		// In-package test variants load under the same import path.
		pkgWithImports("scoutcore/cmd/scoutd", restricted),
		pkgWithImports("scoutcore/internal/core", "fmt"),
	}

	viols := boundaryViolations(pkgs, restricted, []string{"scoutcore/internal/blob"})
	want := []string{
		"scoutcore/cmd/scoutd: " + restricted,
		"scoutcore/cmd/scoutd: " + restricted + "/s3",
	}
	if len(viols) != len(want) {
		t.Fatalf("violations = %v, want %v", viols, want)
	}
	for i := range want {
		if viols[i] != want[i] {
			t.Fatalf("violations = %v, want %v", viols, want)
		}
	}
}

func TestHasAnyPrefix(t *testing.T) {
	prefixes := []string{"scoutcore/internal/blob"}
	cases := []struct {
		path string
		want bool
	}{
		{"scoutcore/internal/blob", true},
		{"scoutcore/internal/blob.test", true},
		{"scoutcore/internal/core", false},
	}
	for _, c := range cases {
		if got := hasAnyPrefix(c.path, prefixes); got != c.want {
			t.Errorf("hasAnyPrefix(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestFailHelpers(t *testing.T) {
	rec := &recordingTB{TB: t}
	failIfTransitiveViolations(rec, "unused", nil)
	failIfDirectViolations(rec, "unused", nil)
	if len(rec.fatals) != 0 {
		t.Fatalf("clean runs must not fail: %v", rec.fatals)
	}

	failIfTransitiveViolations(rec, "keep the contract flat", []string{"a", "b"})
	failIfDirectViolations(rec, "keep the contract flat", []string{"c (in x.go)"})
	if len(rec.fatals) != 2 {
		t.Fatalf("fatals = %v, want two failures", rec.fatals)
	}
	for _, m := range rec.fatals {
		if !strings.Contains(m, "keep the contract flat") {
			t.Fatalf("failure %q missing reason", m)
		}
	}
}
