// Package migrations embebe el esquema SQL aplicado con goose al arrancar.
package migrations

import "embed"

// FS contiene los archivos *.sql versionados.
//
//go:embed *.sql
var FS embed.FS
