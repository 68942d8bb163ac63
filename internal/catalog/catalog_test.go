package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scoutcore/pkg/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if c.DefaultFinalVolume != domain.DefaultFinalVolume {
		t.Fatalf("default final volume = %v, want %v", c.DefaultFinalVolume, domain.DefaultFinalVolume)
	}

	ph, ok := c.Lookup(domain.BufferPHFactor)
	if !ok {
		t.Fatalf("catalog missing %q", domain.BufferPHFactor)
	}
	if ph.RequiresStock {
		t.Fatalf("%q must not require a stock", domain.BufferPHFactor)
	}
	if ph.Kind != domain.KindPH {
		t.Fatalf("%q kind = %q", domain.BufferPHFactor, ph.Kind)
	}

	conc, ok := c.Lookup(domain.BufferConcentrationFactor)
	if !ok {
		t.Fatalf("catalog missing %q", domain.BufferConcentrationFactor)
	}
	if !conc.RequiresStock {
		t.Fatalf("%q must require a stock", domain.BufferConcentrationFactor)
	}
}

func TestDisplayNameFallsBackToKey(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if got := c.DisplayName("NaCl"); got != "Sodium chloride" {
		t.Fatalf("display name = %q", got)
	}
	if got := c.DisplayName("mystery factor"); got != "mystery factor" {
		t.Fatalf("fallback display name = %q", got)
	}
}

func TestParseRejectsMalformedCatalogs(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate key",
			doc: "default_final_volume: 100\nfactors:\n" +
				"  - {key: NaCl, display_name: A, kind: concentration, requires_stock: true}\n" +
				"  - {key: NaCl, display_name: B, kind: concentration, requires_stock: true}\n",
			want: "duplicate factor key",
		},
		{
			name: "unknown kind",
			doc: "default_final_volume: 100\nfactors:\n" +
				"  - {key: NaCl, display_name: A, kind: mystery, requires_stock: true}\n",
			want: "unknown kind",
		},
		{
			name: "ph requiring stock",
			doc: "default_final_volume: 100\nfactors:\n" +
				"  - {key: buffer pH, display_name: Buffer pH, kind: ph, requires_stock: true}\n",
			want: "cannot require a stock",
		},
		{
			name: "non-positive volume",
			doc: "default_final_volume: 0\nfactors:\n" +
				"  - {key: NaCl, display_name: A, kind: concentration, requires_stock: true}\n",
			want: "must be positive",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Parse error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestFromEnvPrefersOverrideFile(t *testing.T) {
	doc := "default_final_volume: 50\nfactors:\n" +
		"  - {key: glycine, display_name: Glycine, kind: concentration, unit: mM, requires_stock: true}\n"
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	t.Setenv(EnvPath, path)

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if c.DefaultFinalVolume != 50 || len(c.Factors) != 1 {
		t.Fatalf("unexpected catalog: %+v", c)
	}
	if _, ok := c.Lookup("glycine"); !ok {
		t.Fatalf("override factor missing")
	}
}

func TestFromEnvFailsOnMissingFile(t *testing.T) {
	t.Setenv(EnvPath, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
}
