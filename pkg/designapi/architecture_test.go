package designapi

import (
	"strings"
	"testing"

	"scoutcore/testutil"
)

// The output contract is imported by external consumers; it must stay free of
// third-party modules and internal packages.
func TestContractDependencyFootprint(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", func(path string) bool {
		root := strings.SplitN(path, "/", 2)[0]
		return strings.Contains(root, ".")
	}, "designapi must not pull third-party modules")

	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"designapi is a public contract")
}
