package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact_MasksSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := zap.New(redact(core, []string{"123:ABC"}))

	l.With(zap.String("url", "https://api.telegram.org/bot123:ABC/getMe")).
		Error("request to bot123:ABC failed",
			zap.Error(errors.New(`Post "https://api.telegram.org/bot123:ABC/sendMessage": EOF`)),
			zap.Int("attempt", 1),
		)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Message != "request to bot[REDACTED] failed" {
		t.Fatalf("message = %q", e.Message)
	}
	ctx := e.ContextMap()
	if ctx["url"] != "https://api.telegram.org/bot[REDACTED]/getMe" {
		t.Fatalf("url = %v", ctx["url"])
	}
	if ctx["error"] != `Post "https://api.telegram.org/bot[REDACTED]/sendMessage": EOF` {
		t.Fatalf("error = %v", ctx["error"])
	}
	if ctx["attempt"] != int64(1) {
		t.Fatalf("attempt = %v", ctx["attempt"])
	}
}

func TestRedact_NoSecretsKeepsCore(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	if got := redact(core, []string{""}); got != core {
		t.Fatal("expected the original core")
	}
}
