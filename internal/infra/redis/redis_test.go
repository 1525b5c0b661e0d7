package redis

import (
	"context"
	"testing"

	"github.com/sifan077/linkbot/config"
)

func TestAddr(t *testing.T) {
	if got := Addr(config.RedisConfig{}); got != "localhost:6379" {
		t.Fatalf("Addr(default) = %q", got)
	}
	if got := Addr(config.RedisConfig{Host: "cache", Port: 7000}); got != "cache:7000" {
		t.Fatalf("Addr() = %q", got)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	if _, err := NewClient(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1}); err == nil {
		t.Fatal("expected ping error")
	}
}
