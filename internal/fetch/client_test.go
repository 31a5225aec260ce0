package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgweather/sgweather/internal/fetch"
)

func TestClient_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.ClientConfig{
		Source:  "readings",
		Headers: map[string]string{"User-Agent": "test-agent"},
	})

	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_Get_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.ClientConfig{
		Source:          "readings",
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Get_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.ClientConfig{
		Source:          "radar",
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
	})

	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, fetch.KindHTTPStatus, fe.Kind)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.Transient())
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestClient_Get_ExhaustedRetriesReturnTypedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.ClientConfig{
		Source:          "pm25",
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	})

	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, fetch.KindHTTPStatus, fe.Kind)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.True(t, fe.Transient())
	assert.Equal(t, "pm25", fe.Source)
}

func TestClient_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.ClientConfig{
		Source:          "uv",
		Timeout:         20 * time.Millisecond,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
	})

	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, fetch.KindTimeout, fe.Kind)
	assert.True(t, fe.Transient())
}

func TestClient_Get_NetworkError(t *testing.T) {
	client := fetch.NewClient(fetch.ClientConfig{
		Source:          "readings",
		Timeout:         50 * time.Millisecond,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
	})

	// Unroutable port on localhost.
	_, err := client.Get(context.Background(), "http://127.0.0.1:1/nothing")
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.True(t, fe.Transient())
}
