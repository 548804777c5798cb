package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSchemaMismatch_IsConfiguration(t *testing.T) {
	err := fmt.Errorf("ensure table kong: %w", ErrSchemaMismatch)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatal("expected ErrSchemaMismatch")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Fatal("expected schema mismatch to be a configuration error")
	}
}

func TestMissingFieldError(t *testing.T) {
	err := fmt.Errorf("format: %w", NewMissingField("question"))
	if !errors.Is(err, ErrMissingField) {
		t.Fatal("expected ErrMissingField")
	}
	var mf *MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("expected *MissingFieldError, got %T", err)
	}
	if mf.Field != "question" {
		t.Errorf("Field = %q, want question", mf.Field)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("embed: %w", ErrRetryableService)) {
		t.Error("retryable service error must be retryable")
	}
	if IsRetryable(fmt.Errorf("embed: %w", ErrFatalService)) {
		t.Error("fatal service error must not be retryable")
	}
	if IsRetryable(ErrInvalidInput) {
		t.Error("invalid input must not be retryable")
	}
	if !IsServiceError(ErrFatalService) || IsServiceError(ErrNotFound) {
		t.Error("IsServiceError misclassified")
	}
}

func TestTableSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  TableSchema
		wantErr bool
	}{
		{"default", DefaultTableSchema(), false},
		{"empty name", TableSchema{Dimensions: 4}, true},
		{"bad chars", TableSchema{Name: "kong; DROP", Dimensions: 4}, true},
		{"leading digit", TableSchema{Name: "1kong", Dimensions: 4}, true},
		{"zero dims", TableSchema{Name: "kong"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.schema.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestTableSchema_Signature(t *testing.T) {
	a := TableSchema{Name: "a", Dimensions: 4}
	b := TableSchema{Name: "b", Dimensions: 4}
	c := TableSchema{Name: "a", Dimensions: 8}
	if a.Signature() != b.Signature() {
		t.Error("signature must not depend on the table name")
	}
	if a.Signature() == c.Signature() {
		t.Error("signature must change with dimensions")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"system": RoleSystem,
		"human":  RoleUser,
		"User":   RoleUser,
		"ai":     RoleAssistant,
	} {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRole("tool"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(Chunk{Index: 2, Content: "x", LinesFrom: 3, LinesTo: 5}, []float32{1, 2})
	if r.Index != 2 || r.LinesFrom != 3 || r.LinesTo != 5 || r.Content != "x" || len(r.Vector) != 2 {
		t.Errorf("unexpected record: %+v", r)
	}
}
