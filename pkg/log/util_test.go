package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	err := errors.New("boom")

	tests := []struct {
		name      string
		input     []any
		wantCount int
	}{
		{"empty input", []any{}, 0},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, 3},
		{"duration", []any{"took", 250 * time.Millisecond}, 1},
		{"error only", []any{err}, 1},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, 3},
		{"odd number of args", []any{"key1", "val1", "key2"}, 2},
		{"non-string key", []any{123, "value"}, 1},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			if len(fields) != tt.wantCount {
				t.Fatalf("got %d fields, want %d", len(fields), tt.wantCount)
			}
			for _, f := range fields {
				if f.Key == "" {
					t.Errorf("field has empty key: %+v", f)
				}
			}
		})
	}
}

func TestTypedFieldKinds(t *testing.T) {
	if f := typedField("d", time.Second); f.Type != zapcore.DurationType {
		t.Errorf("duration field type = %v", f.Type)
	}
	if f := typedField("s", "v"); f.Type != zapcore.StringType {
		t.Errorf("string field type = %v", f.Type)
	}
	if f := typedField("e", errors.New("x")); f.Type != zapcore.ErrorType {
		t.Errorf("error field type = %v", f.Type)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != Std() {
		t.Fatal("expected global logger for empty context")
	}

	l := NewNopLogger().WithName("feed")
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected logger stored in context")
	}
}

func TestOptionsValidate(t *testing.T) {
	if errs := NewOptions().Validate(); len(errs) != 0 {
		t.Fatalf("default options should validate, got %v", errs)
	}

	o := NewOptions()
	o.Level = "loud"
	o.Format = "xml"
	if errs := o.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
