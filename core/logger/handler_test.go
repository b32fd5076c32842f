package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	log := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	}))
	emit(log)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithStep(ctx, "category1")

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "dialogue"), slog.LevelInfo, "dialogue.advance",
			slog.String("status", "ok"),
			slog.String("phase", "Active"),
		)
	})
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=dialogue", "event=dialogue.advance", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "step=category1", "phase=active"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-json")
	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "store"), slog.LevelError, "store.commit",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
		)
	})
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"store"`, `"event":"store.commit"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	ctx := WithRID(context.Background(), "123:456:789")
	kv := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(kv, "rid="+CompactRID("123:456:789")) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(js, `"rid_full":"123:456:789"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", js)
	}
}

func TestStructuredHandlerUUIDRIDUnchanged(t *testing.T) {
	rid := "5f0c2b7e-8d7a-4c59-a1a6-1f3b2f0b9a11"
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(WithRID(context.Background(), rid), log, slog.LevelInfo, "http.request")
	})
	if !strings.Contains(line, "rid="+rid) {
		t.Fatalf("uuid rid should pass through, got %s", line)
	}
}

func TestStructuredHandlerDurationAndGroups(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.WithGroup("pool").Info("dispatch.done",
			slog.Duration("duration", 1500*time.Microsecond),
			slog.Int("queued", 3),
		)
	})
	if !strings.Contains(line, "pool.duration_ms=2") {
		t.Fatalf("expected rounded grouped duration, got %s", line)
	}
	if !strings.Contains(line, "pool.queued=3") {
		t.Fatalf("expected grouped attr, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerQuotesAndPrunes(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.Info("msg", slog.String("cause", "two words"), slog.String("empty", ""), slog.String("outcome", "weird"))
	})
	if !strings.Contains(line, `cause="two words"`) {
		t.Fatalf("expected quoted value, got %s", line)
	}
	if strings.Contains(line, "empty=") || strings.Contains(line, "outcome=") {
		t.Fatalf("expected empty and invalid fields pruned, got %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio should allow everything")
	}
	if n, d := parseRatioSpec("2/5"); n != 2 || d != 5 {
		t.Fatalf("parse 2/5 = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("10"); n != 1 || d != 10 {
		t.Fatalf("parse 10 = %d/%d", n, d)
	}
}

func TestSanitizeLimit(t *testing.T) {
	got := SanitizeLimit("ok\x00\u200bдоход\tx", 7)
	if got != "okдоход" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if SanitizeLimit("abc", 0) != "" {
		t.Fatal("zero limit should return empty string")
	}
}
