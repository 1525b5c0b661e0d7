package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/sifan077/linkbot/internal/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_AllOK(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(HealthDeps{
		Service: "linkbot",
		Checks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	}).Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "linkbot", body["service"])
}

func TestHealth_Degraded(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(HealthDeps{
		Checks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	}).Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["postgres"])
	assert.Equal(t, "connection refused", body.Dependencies["redis"])
}

func newWebhookApp(t *testing.T, got *[]tgbotapi.Update) (*fiber.App, string) {
	t.Helper()
	signer := httpUtil.NewWebhookSigner([]byte("bot-token"))
	token, err := signer.Token()
	require.NoError(t, err)

	app := fiber.New()
	NewWebhookHandler(WebhookDeps{
		Path:   "/hook",
		Signer: signer,
		OnUpdate: func(u tgbotapi.Update) bool {
			*got = append(*got, u)
			return true
		},
	}).Register(app)
	return app, token
}

func TestWebhook_AcceptsSignedUpdate(t *testing.T) {
	var got []tgbotapi.Update
	app, token := newWebhookApp(t, &got)

	body := `{"update_id":5,"message":{"message_id":1,"from":{"id":7},"chat":{"id":7,"type":"private"},"text":"/start"}}`
	req := httptest.NewRequest("POST", "/hook/"+token, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].UpdateID)
	assert.Equal(t, "/start", got[0].Message.Text)
}

func TestWebhook_RejectsWrongToken(t *testing.T) {
	var got []tgbotapi.Update
	app, _ := newWebhookApp(t, &got)

	req := httptest.NewRequest("POST", "/hook/AAAAAAAAAAAAAAAAAAAAAA", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Empty(t, got)
}

func TestWebhook_BadBody(t *testing.T) {
	var got []tgbotapi.Update
	app, token := newWebhookApp(t, &got)

	req := httptest.NewRequest("POST", "/hook/"+token, strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, got)
}
