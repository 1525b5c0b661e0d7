package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/linkbot/config"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{User: "bot", Database: "links"},
			want: "postgres://bot@localhost:5432/links?sslmode=disable",
		},
		{
			name: "escaped credentials",
			cfg: config.PostgresConfig{
				Host: "db", Port: 6432, User: "bot", Password: "p@ss/word",
				Database: "links", SSLMode: "require",
			},
			want: "postgres://bot:p@ss%2Fword@db:6432/links?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConnString(tt.cfg); got != tt.want {
				t.Fatalf("ConnString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("x", "", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("empty value = %v, %v", d, err)
	}
	d, err = parseDuration("x", "90s", time.Minute)
	if err != nil || d != 90*time.Second {
		t.Fatalf("90s = %v, %v", d, err)
	}
	if _, err := parseDuration("max_conn_lifetime", "soon", time.Minute); err == nil ||
		!strings.Contains(err.Error(), "max_conn_lifetime") {
		t.Fatalf("expected named error, got %v", err)
	}
}

func TestNewPool_InvalidDurationFailsBeforeDialing(t *testing.T) {
	_, err := NewPool(context.Background(), config.PostgresConfig{
		Host:            "127.0.0.1",
		Port:            1,
		MaxConnIdleTime: "forever",
	})
	if err == nil || !strings.Contains(err.Error(), "max_conn_idle_time") {
		t.Fatalf("NewPool err = %v", err)
	}
}
