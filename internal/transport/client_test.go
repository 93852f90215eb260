package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAnswer_SendsPredictionRequest(t *testing.T) {
	var gotBody map[string]any
	var gotContentType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"A","sources":[{"title":"S"}]}`))
	}))
	defer srv.Close()

	raw, err := NewClient().FetchAnswer(context.Background(), srv.URL, "What is AI?")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "What is AI?", gotBody["question"])
	assert.Equal(t, map[string]any{}, gotBody["overrideConfig"])
	assert.True(t, raw.IsJSON())
	assert.JSONEq(t, `{"text":"A","sources":[{"title":"S"}]}`, string(raw.JSON))
}

func TestFetchAnswer_PlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("just an answer, not json"))
	}))
	defer srv.Close()

	raw, err := NewClient().FetchAnswer(context.Background(), srv.URL, "q")
	require.NoError(t, err)
	assert.False(t, raw.IsJSON())
	assert.Equal(t, "just an answer, not json", raw.Text)
}

func TestFetchAnswer_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server error"))
	}))
	defer srv.Close()

	_, err := NewClient().FetchAnswer(context.Background(), srv.URL, "q")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "server error", statusErr.Body)
	assert.True(t, IsHTTPStatusError(err))
	assert.False(t, IsNetworkError(err))
}

func TestFetchAnswer_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient().FetchAnswer(context.Background(), url, "q")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsHTTPStatusError(err))
}

func TestFetchAnswer_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(WithTimeout(50*time.Millisecond)).FetchAnswer(context.Background(), srv.URL, "q")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchAnswer_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewClient().FetchAnswer(ctx, srv.URL, "q")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchAnswer_InvalidEndpoint(t *testing.T) {
	_, err := NewClient().FetchAnswer(context.Background(), "://bad", "q")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}
