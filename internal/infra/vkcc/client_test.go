package vkcc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sifan077/linkbot/config"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.ProviderConfig{
		Token:      "secret",
		BaseURL:    srv.URL,
		APIVersion: "5.199",
		Timeout:    time.Second,
	}, nil)
}

func TestClient_Shorten(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/utils.getShortLink", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "https://example.com/page", q.Get("url"))
		assert.Equal(t, "secret", q.Get("access_token"))
		assert.Equal(t, "5.199", q.Get("v"))
		w.Write([]byte(`{"response":{"short_url":"https://vk.cc/abc","key":"abc"}}`))
	})

	short, err := c.Shorten(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "https://vk.cc/abc", short)
}

func TestClient_Shorten_ErrorPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":100,"error_msg":"One of the parameters specified was missing or invalid"}}`))
	})

	_, err := c.Shorten(context.Background(), "https://example.com")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 100, pe.Code)
	assert.Contains(t, err.Error(), "parameters specified was missing")
}

func TestClient_Shorten_BadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Shorten(context.Background(), "https://example.com")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
}

func TestClient_Shorten_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(config.ProviderConfig{Token: "t", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := c.Shorten(context.Background(), "https://example.com")
	require.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestClient_GetStats_NoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/utils.getLinkStats", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "abc", q.Get("key"))
		assert.Equal(t, "1", q.Get("extended"))
		assert.Equal(t, "forever", q.Get("interval"))
		w.Write([]byte(`{"response":{"key":"abc","stats":[]}}`))
	})

	snap, err := c.GetStats(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalViews)
	assert.True(t, snap.Empty())
}

func TestClient_GetStats_Extended(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"key":"abc","stats":[
			{"views":6,
			 "sex_age":[{"age_range":"18-21","male":2,"female":1}],
			 "countries":[{"country_id":1,"views":5}],
			 "cities":[{"city_id":1,"views":4}]},
			{"views":4,
			 "sex_age":[{"age_range":"18-21","male":1,"female":0}],
			 "countries":[{"country_id":1,"views":3},{"country_id":2,"views":1}]}
		]}}`))
	})

	snap, err := c.GetStats(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.TotalViews)
	assert.Equal(t, []model.DemographicBin{
		{AgeBracket: "18-21", Sex: model.SexMale, Views: 3},
		{AgeBracket: "18-21", Sex: model.SexFemale, Views: 1},
	}, snap.Demographics)
	assert.Equal(t, []model.RegionViews{{RegionID: 1, Views: 8}, {RegionID: 2, Views: 1}}, snap.Regions)
	assert.Equal(t, []model.CityViews{{CityID: 1, Views: 4}}, snap.Cities)
}

func TestClient_GetStats_FlatShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"views":3,
			"sex_age":[{"age_range":"24-27","sex":1,"views":2},{"age_range":"24-27","sex":2,"views":1}],
			"cities":[{"city_id":99,"views":3}]}}`))
	})

	snap, err := c.GetStats(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalViews)
	require.Len(t, snap.Demographics, 2)
	assert.Equal(t, model.SexMale, snap.Demographics[0].Sex)
	assert.Equal(t, model.SexFemale, snap.Demographics[1].Sex)
	assert.Empty(t, snap.Regions)
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	c := New(config.ProviderConfig{Token: "SUPERSECRETTOKEN", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)

	_, err := c.Shorten(context.Background(), "https://example.com")
	require.True(t, IsProviderError(err))
	assert.NotContains(t, err.Error(), "SUPERSECRETTOKEN")
	assert.NotContains(t, err.Error(), "access_token")
	assert.Contains(t, err.Error(), "vk.cc shorten: request failed")

	_, err = c.GetStats(context.Background(), "abc")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETTOKEN")
}

func TestProviderError_Reason(t *testing.T) {
	err := &ProviderError{Op: "stats", Code: 100, Message: "invalid key"}
	assert.Equal(t, "invalid key (code 100)", err.Reason())
	assert.Equal(t, "vk.cc stats: invalid key (code 100)", err.Error())
}
