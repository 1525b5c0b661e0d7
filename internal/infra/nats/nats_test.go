package natsclient

import (
	"testing"

	"github.com/sifan077/linkbot/config"
)

func TestBuildURL(t *testing.T) {
	if got := buildURL(config.NATSConfig{}); got != "nats://localhost:4222" {
		t.Fatalf("buildURL(default) = %q", got)
	}
	if got := buildURL(config.NATSConfig{Host: "bus", Port: 4333}); got != "nats://bus:4333" {
		t.Fatalf("buildURL() = %q", got)
	}
}
