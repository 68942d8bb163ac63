package schema

import (
	"testing"

	"gopkg.in/yaml.v3"

	"scoutcore/docs/schema/openapi"
)

func TestAPIVersion(t *testing.T) {
	got, err := APIVersion()
	if err != nil {
		t.Fatalf("APIVersion: %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty contract version")
	}

	var doc contractDoc
	if err := yaml.Unmarshal(openapi.Spec(), &doc); err != nil {
		t.Fatalf("unmarshal contract: %v", err)
	}
	if got != doc.Info.Version {
		t.Fatalf("version mismatch: got %q want %q", got, doc.Info.Version)
	}
}

func TestAPIInfo(t *testing.T) {
	info, err := APIInfo()
	if err != nil {
		t.Fatalf("APIInfo: %v", err)
	}
	if info.Title == "" || info.Version == "" {
		t.Fatalf("expected title and version, got %+v", info)
	}
}
