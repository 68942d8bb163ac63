// Package schema exposes metadata from the embedded API contract for
// runtime use.
package schema

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"scoutcore/docs/schema/openapi"
)

// Info is the identifying block of the design API contract.
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

type contractDoc struct {
	OpenAPI string `yaml:"openapi"`
	Info    Info   `yaml:"info"`
}

var (
	once sync.Once
	doc  contractDoc
	err  error
)

func load() (contractDoc, error) {
	once.Do(func() {
		err = yaml.Unmarshal(openapi.Spec(), &doc)
		if err == nil && doc.Info.Version == "" {
			err = fmt.Errorf("schema: contract missing info.version")
		}
	})
	return doc, err
}

// APIVersion returns the contract version declared in the embedded OpenAPI
// document (source of truth: docs/schema/openapi/design-api.yaml).
func APIVersion() (string, error) {
	d, e := load()
	return d.Info.Version, e
}

// APIInfo returns the contract info block.
func APIInfo() (Info, error) {
	d, e := load()
	return d.Info, e
}
