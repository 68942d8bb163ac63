// Package sqldocs exposes the reference SQL bundles directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the reference SQLite DDL bundle.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the reference Postgres DDL bundle.
//
//go:embed postgres.sql
var Postgres string
