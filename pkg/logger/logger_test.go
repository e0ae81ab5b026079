package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevel(t *testing.T) {
	if got := New("debug").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("expected debug level got %v", got)
	}
	if got := New("nonsense").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback got %v", got)
	}
	if got := New("").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level got %v", got)
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	l := FromContext(ctx)
	l.Info().Str("upload", "abc").Msg("stored")

	out := buf.String()
	if !strings.Contains(out, "stored") || !strings.Contains(out, `"upload":"abc"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestFromContextDefaultIsSilent(t *testing.T) {
	l := FromContext(context.Background())
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled logger got %v", l.GetLevel())
	}
}
