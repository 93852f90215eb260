package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, endpoint, query string) (models.RawAnswer, error)

func (f fetchFunc) FetchAnswer(ctx context.Context, endpoint, query string) (models.RawAnswer, error) {
	return f(ctx, endpoint, query)
}

func jsonReply(s string) fetchFunc {
	return func(context.Context, string, string) (models.RawAnswer, error) {
		return models.RawAnswer{JSON: json.RawMessage(s)}, nil
	}
}

func TestSearch_EmptyQueryMakesNoCall(t *testing.T) {
	var calls int32
	o := NewOrchestrator(fetchFunc(func(context.Context, string, string) (models.RawAnswer, error) {
		atomic.AddInt32(&calls, 1)
		return models.RawAnswer{Text: "x"}, nil
	}), StaticEndpoint("http://upstream"))

	for _, q := range []string{"", "   ", "\t\n"} {
		assert.Nil(t, o.Search(context.Background(), q))
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, StateIdle, o.State())
}

func TestSearch_Success(t *testing.T) {
	var gotEndpoint, gotQuery string
	o := NewOrchestrator(fetchFunc(func(_ context.Context, endpoint, query string) (models.RawAnswer, error) {
		gotEndpoint, gotQuery = endpoint, query
		return models.RawAnswer{JSON: json.RawMessage(`{"text":"A","sources":[{"title":"S"}]}`)}, nil
	}), StaticEndpoint("http://upstream/predict"))

	res := o.Search(context.Background(), "  What is AI?  ")
	require.NotNil(t, res)
	assert.Equal(t, "A", res.Text)
	assert.Equal(t, []models.Source{{Title: "S"}}, res.Sources)
	assert.Equal(t, "http://upstream/predict", gotEndpoint)
	assert.Equal(t, "What is AI?", gotQuery)
	assert.Equal(t, StateCompleted, o.State())
	assert.False(t, o.Busy())
	assert.Empty(t, o.Err())
}

func TestSearch_HTTP500ReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server error"))
	}))
	defer srv.Close()

	o := NewOrchestrator(transport.NewClient(), StaticEndpoint(srv.URL))
	res := o.Search(context.Background(), "hello")
	require.NotNil(t, res)
	assert.Equal(t, FallbackText, res.Text)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, "Search failed: 500 Internal Server Error", o.Err())
	assert.False(t, o.Busy())
}

func TestSearch_NetworkErrorHasOwnMessage(t *testing.T) {
	o := NewOrchestrator(fetchFunc(func(context.Context, string, string) (models.RawAnswer, error) {
		return models.RawAnswer{}, &transport.NetworkError{Endpoint: "http://x", Err: errors.New("connection refused")}
	}), StaticEndpoint("http://x"))

	res := o.Search(context.Background(), "hello")
	require.NotNil(t, res)
	assert.Equal(t, FallbackText, res.Text)
	assert.Contains(t, o.Err(), "could not reach the search service")
}

func TestSearch_ErrorClearedByNextSearch(t *testing.T) {
	fail := true
	o := NewOrchestrator(fetchFunc(func(context.Context, string, string) (models.RawAnswer, error) {
		if fail {
			return models.RawAnswer{}, &transport.HTTPStatusError{StatusCode: 502, Body: "bad gateway"}
		}
		return models.RawAnswer{Text: "ok"}, nil
	}), StaticEndpoint("http://x"))

	o.Search(context.Background(), "one")
	assert.NotEmpty(t, o.Err())
	fail = false
	res := o.Search(context.Background(), "two")
	assert.Equal(t, "ok", res.Text)
	assert.Empty(t, o.Err())
	assert.Equal(t, StateCompleted, o.State())
}

func TestSearch_PanicIsContained(t *testing.T) {
	o := NewOrchestrator(fetchFunc(func(context.Context, string, string) (models.RawAnswer, error) {
		panic("boom")
	}), StaticEndpoint("http://x"))

	var res *models.SearchResult
	assert.NotPanics(t, func() { res = o.Search(context.Background(), "hello") })
	require.NotNil(t, res)
	assert.Equal(t, FallbackText, res.Text)
	assert.Equal(t, StateFailed, o.State())
	assert.False(t, o.Busy())
}

func TestSearch_BusyWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	o := NewOrchestrator(fetchFunc(func(ctx context.Context, _, _ string) (models.RawAnswer, error) {
		close(started)
		<-release
		return models.RawAnswer{Text: "done"}, nil
	}), StaticEndpoint("http://x"))

	done := make(chan *models.SearchResult)
	go func() { done <- o.Search(context.Background(), "slow") }()

	<-started
	assert.True(t, o.Busy())
	assert.Equal(t, StateInFlight, o.State())
	close(release)
	res := <-done
	assert.Equal(t, "done", res.Text)
	assert.False(t, o.Busy())
}

func TestSearch_NewSearchCancelsStaleOne(t *testing.T) {
	firstStarted := make(chan struct{})
	var once sync.Once
	o := NewOrchestrator(fetchFunc(func(ctx context.Context, _, query string) (models.RawAnswer, error) {
		if query == "first" {
			once.Do(func() { close(firstStarted) })
			<-ctx.Done()
			return models.RawAnswer{}, &transport.NetworkError{Endpoint: "http://x", Err: ctx.Err()}
		}
		return models.RawAnswer{Text: "second answer"}, nil
	}), StaticEndpoint("http://x"))

	firstDone := make(chan *models.SearchResult)
	go func() { firstDone <- o.Search(context.Background(), "first") }()
	<-firstStarted

	second := o.Search(context.Background(), "second")
	assert.Equal(t, "second answer", second.Text)

	select {
	case first := <-firstDone:
		assert.Equal(t, FallbackText, first.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("stale search was not cancelled")
	}
	assert.Equal(t, StateCompleted, o.State())
	assert.Empty(t, o.Err())
}

func TestSearch_EndpointReadPerCall(t *testing.T) {
	var endpoints []string
	src := &switchableEndpoint{url: "http://a"}
	o := NewOrchestrator(fetchFunc(func(_ context.Context, endpoint, _ string) (models.RawAnswer, error) {
		endpoints = append(endpoints, endpoint)
		return models.RawAnswer{Text: "x"}, nil
	}), src)

	o.Search(context.Background(), "one")
	src.url = "http://b"
	o.Search(context.Background(), "two")
	assert.Equal(t, []string{"http://a", "http://b"}, endpoints)
}

func TestSearch_NeverNilForNonEmptyQueries(t *testing.T) {
	replies := []fetchFunc{
		jsonReply(`{"foo":"bar"}`),
		jsonReply(`"hello"`),
		jsonReply(`null`),
		func(context.Context, string, string) (models.RawAnswer, error) {
			return models.RawAnswer{}, errors.New("anything")
		},
	}
	for _, reply := range replies {
		res := NewOrchestrator(reply, StaticEndpoint("http://x")).Search(context.Background(), "q")
		require.NotNil(t, res)
		assert.NotNil(t, res.Sources)
	}
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	o := NewOrchestrator(fetchFunc(func(ctx context.Context, _, _ string) (models.RawAnswer, error) {
		close(started)
		<-ctx.Done()
		return models.RawAnswer{}, &transport.NetworkError{Endpoint: "http://x", Err: ctx.Err()}
	}), StaticEndpoint("http://x"))

	done := make(chan *models.SearchResult)
	go func() { done <- o.Search(context.Background(), "q") }()
	<-started
	o.Cancel()
	res := <-done
	assert.Equal(t, FallbackText, res.Text)
	assert.Equal(t, StateFailed, o.State())
}

type switchableEndpoint struct{ url string }

func (s *switchableEndpoint) Endpoint() string { return s.url }

func TestRun_Outcomes(t *testing.T) {
	ok := NewOrchestrator(jsonReply(`{"text":"hi"}`), StaticEndpoint("http://x"))
	res, outcome := ok.Run(context.Background(), "q")
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, OutcomeCompleted, outcome)

	failing := NewOrchestrator(fetchFunc(func(context.Context, string, string) (models.RawAnswer, error) {
		return models.RawAnswer{}, &transport.HTTPStatusError{StatusCode: http.StatusBadGateway}
	}), StaticEndpoint("http://x"))
	res, outcome = failing.Run(context.Background(), "q")
	assert.Equal(t, FallbackText, res.Text)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_StaleSearchReportsSuperseded(t *testing.T) {
	firstStarted := make(chan struct{})
	o := NewOrchestrator(fetchFunc(func(ctx context.Context, _, query string) (models.RawAnswer, error) {
		if query == "first" {
			close(firstStarted)
			<-ctx.Done()
			return models.RawAnswer{}, &transport.NetworkError{Endpoint: "http://x", Err: ctx.Err()}
		}
		return models.RawAnswer{Text: "second answer"}, nil
	}), StaticEndpoint("http://x"))

	type ran struct {
		res     *models.SearchResult
		outcome Outcome
	}
	firstDone := make(chan ran, 1)
	go func() {
		res, outcome := o.Run(context.Background(), "first")
		firstDone <- ran{res, outcome}
	}()
	<-firstStarted

	_, outcome := o.Run(context.Background(), "second")
	assert.Equal(t, OutcomeCompleted, outcome)

	select {
	case first := <-firstDone:
		assert.Equal(t, OutcomeSuperseded, first.outcome)
		assert.Equal(t, FallbackText, first.res.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("stale search was not cancelled")
	}
	assert.Empty(t, o.Err())
}
