package domain

import (
	"fmt"
	"strings"
)

// Column names of the chunk table. The order matches the on-disk layout.
const (
	FieldIndex     = "index"
	FieldVector    = "vector"
	FieldLinesFrom = "lines_from"
	FieldLinesTo   = "lines_to"
	FieldContent   = "content"
)

// Fields lists the fixed chunk table columns in order.
var Fields = []string{FieldIndex, FieldVector, FieldLinesFrom, FieldLinesTo, FieldContent}

// DefaultEmbeddingDimensions matches text-embedding-ada-002 / text-embedding-3-small.
const DefaultEmbeddingDimensions = 1536

// TableSchema describes a chunk table: a name and the fixed vector length.
type TableSchema struct {
	Name       string
	Dimensions int
}

// DefaultTableSchema returns the schema used when nothing is configured.
func DefaultTableSchema() TableSchema {
	return TableSchema{
		Name:       "kong",
		Dimensions: DefaultEmbeddingDimensions,
	}
}

// Validate checks the schema is usable.
func (s TableSchema) Validate() error {
	if !IsValidIdentifier(s.Name) {
		return fmt.Errorf("table name %q: %w", s.Name, ErrConfiguration)
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("table %s: dimensions must be positive, got %d: %w", s.Name, s.Dimensions, ErrConfiguration)
	}
	return nil
}

// Signature is a stable textual form of the schema, used to detect mismatches.
func (s TableSchema) Signature() string {
	return fmt.Sprintf("fields=%s;dim=%d", strings.Join(Fields, ","), s.Dimensions)
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_]+ and does not start with a digit.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if isDigit && i == 0 {
			return false
		}
		if !isAlpha && !isDigit && r != '_' {
			return false
		}
	}
	return true
}
