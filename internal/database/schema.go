package database

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// schemaFiles maps database names to their schema file
var schemaFiles = map[string]string{
	"portfolio":   "schemas/portfolio_schema.sql",
	"client_data": "schemas/cache_schema.sql",
}

// Schema returns the SQL schema for a named database.
// Tests use it to build in-memory databases with the production layout.
func Schema(name string) (string, error) {
	file, ok := schemaFiles[name]
	if !ok {
		return "", fmt.Errorf("no schema registered for database %q", name)
	}
	content, err := schemaFS.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", file, err)
	}
	return string(content), nil
}
