package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDomainStaysDependencyFree enforces the architectural rule that the
// domain layer depends on nothing but the standard library: no internal
// implementation packages and no third-party modules. The engine must remain
// a pure value-in/value-out library so every collaborator (service, exporter,
// CLI) can embed it without dragging in infrastructure.
func TestDomainStaysDependencyFree(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("cannot get working dir: %v", err)
	}
	entries, err := os.ReadDir(wd)
	if err != nil {
		t.Fatalf("cannot read dir: %v", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(wd, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for _, imported := range importPaths(string(data)) {
			if strings.Contains(imported, "/internal/") {
				t.Errorf("%s imports internal package %s", name, imported)
			}
			if root := strings.SplitN(imported, "/", 2)[0]; strings.Contains(root, ".") {
				t.Errorf("%s imports third-party module %s", name, imported)
			}
		}
	}
}

// importPaths scans source text for import declarations without pulling in a
// parser. Good enough for gofmt-formatted files, which is all this package
// contains.
func importPaths(src string) []string {
	var paths []string
	inBlock := false
	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			if q := quotedPath(line); q != "" {
				paths = append(paths, q)
			}
		case strings.HasPrefix(line, "import ("):
			inBlock = true
		case strings.HasPrefix(line, "import "):
			if q := quotedPath(line); q != "" {
				paths = append(paths, q)
			}
		}
	}
	return paths
}

// quotedPath returns the first double-quoted literal in a line, or "".
func quotedPath(line string) string {
	start := strings.Index(line, "\"")
	if start == -1 {
		return ""
	}
	end := strings.Index(line[start+1:], "\"")
	if end == -1 {
		return ""
	}
	return line[start+1 : start+1+end]
}
