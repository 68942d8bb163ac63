// Package openapi embeds the design API contract for runtime distribution.
package openapi

import _ "embed"

// DesignAPISpec contains the OpenAPI document describing the designs HTTP
// surface.
//
//go:embed design-api.yaml
var DesignAPISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), DesignAPISpec...)
}
