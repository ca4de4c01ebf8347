package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestForComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	l := ForComponent(NewText(&buf, slog.LevelInfo), ComponentLedger)
	l.With(FieldUserID, int64(7)).Info("recorded")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "user_id=7") {
		t.Fatalf("unexpected output: %q", out)
	}
	if l.Component() != ComponentLedger {
		t.Fatalf("unexpected component %q", l.Component())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
	l := ForComponent(nil, ComponentBot)
	if got := FromContext(WithContext(context.Background(), l)); got != l {
		t.Fatal("expected stored logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithUser(1).WithOperation(OpStats).WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatal("nil error must not be recorded")
	}
	if len(f.ToSlice()) != 4 {
		t.Fatalf("unexpected slice %v", f.ToSlice())
	}
}
