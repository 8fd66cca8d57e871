package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/apperr"
)

func testClient(endpoint string, maxAttempts int) (*Client, *[]time.Duration) {
	var sleeps []time.Duration
	c := &Client{
		endpoint:    endpoint,
		apiKey:      "test-key",
		maxAttempts: maxAttempts,
		http:        &http.Client{},
		sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	}
	return c, &sleeps
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, sleeps := testClient(srv.URL, 3)
	data, attempts, err := c.do(context.Background(), http.MethodGet, "/partners/", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "Token test-key", gotAuth)
	assert.Empty(t, *sleeps)
}

func TestDoRetriesServerErrorsWithBackoff(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, sleeps := testClient(srv.URL, 5)
	_, attempts, err := c.do(context.Background(), http.MethodGet, "/partners/", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *sleeps)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 3)
	_, attempts, err := c.do(context.Background(), http.MethodGet, "/partners/", nil)
	require.Error(t, err)
	assert.Equal(t, 3, hits)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, apperr.ExternalSystemUnavailable, apperr.KindOf(err))
}

func TestDoClientErrorFailsImmediately(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, sleeps := testClient(srv.URL, 5)
	_, _, err := c.do(context.Background(), http.MethodGet, "/partners/", nil)
	require.Error(t, err)
	assert.Equal(t, 1, hits)
	assert.Empty(t, *sleeps)
	assert.Equal(t, apperr.ExternalSystemUnavailable, apperr.KindOf(err))
}

func TestDoRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	c, _ := testClient(srv.URL, 2)
	_, attempts, err := c.do(context.Background(), http.MethodGet, "/partners/", nil)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, apperr.ExternalSystemUnavailable, apperr.KindOf(err))
}
