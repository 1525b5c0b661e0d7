package logger

import (
	"reflect"
	"testing"

	"github.com/sifan077/linkbot/config"
)

func TestFromApp(t *testing.T) {
	tests := []struct {
		name string
		in   config.LogConfig
		dev  bool
		want Config
	}{
		{"production defaults", config.LogConfig{}, false, Config{Encoding: "json"}},
		{"development defaults", config.LogConfig{}, true, Config{Development: true, Level: "debug", Encoding: "console"}},
		{"explicit wins", config.LogConfig{Level: "warn", Encoding: "json"}, true, Config{Development: true, Level: "warn", Encoding: "json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromApp(tt.in, tt.dev); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FromApp() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromApp_Secrets(t *testing.T) {
	got := FromApp(config.LogConfig{}, false, "bot-token", "vk-token")
	if !reflect.DeepEqual(got.Redact, []string{"bot-token", "vk-token"}) {
		t.Fatalf("Redact = %v", got.Redact)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNamed(t *testing.T) {
	l, err := New(Config{Encoding: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mu.Lock()
	global = l
	mu.Unlock()

	if Named("pipeline") == nil {
		t.Fatal("Named returned nil")
	}
}
