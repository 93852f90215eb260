// Package search runs a single query against the upstream endpoint and always
// hands back a displayable result.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/normalize"
	"github.com/hyperjump/kiku/internal/transport"
	"go.uber.org/zap"
)

// FallbackText is the answer shown when a search could not be completed.
const FallbackText = "I apologize, but I'm currently unable to process your request due to a technical issue. Please try again in a moment."

// Fetcher sends a query to an endpoint. *transport.Client implements it.
type Fetcher interface {
	FetchAnswer(ctx context.Context, endpoint, query string) (models.RawAnswer, error)
}

// EndpointSource yields the endpoint to use for the next search. *config.Live implements it.
type EndpointSource interface {
	Endpoint() string
}

// StaticEndpoint is an EndpointSource that never changes.
type StaticEndpoint string

// Endpoint returns s.
func (s StaticEndpoint) Endpoint() string { return string(s) }

// Fallback returns the result used in place of an answer when a search fails.
func Fallback() models.SearchResult {
	return models.NewSearchResult(FallbackText, nil)
}

// Orchestrator runs searches one at a time. Starting a search cancels the one
// still in flight, if any; the superseded call returns the fallback result and
// leaves State and Err alone.
type Orchestrator struct {
	fetcher   Fetcher
	endpoints EndpointSource
	logger    *zap.Logger

	mu     sync.Mutex
	state  State
	errMsg string
	gen    uint64
	cancel context.CancelFunc
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger used for failed searches.
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator that reads the endpoint from endpoints on every search.
func NewOrchestrator(fetcher Fetcher, endpoints EndpointSource, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		endpoints: endpoints,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search sends query upstream and returns the normalized answer.
// A query that is empty after trimming returns nil without any network call.
// Otherwise the result is never nil: failures yield Fallback() and set Err.
func (o *Orchestrator) Search(ctx context.Context, query string) *models.SearchResult {
	result, _ := o.Run(ctx, query)
	return result
}

// Run is Search that also reports how the call ended. Callers that act on the
// answer must use the outcome rather than Err, which a newer search may have
// changed by the time Run returns.
func (o *Orchestrator) Run(ctx context.Context, query string) (result *models.SearchResult, outcome Outcome) {
	q, ok := models.CleanQuery(query)
	if !ok {
		return nil, OutcomeCompleted
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen
	o.cancel = cancel
	o.state = StateInFlight
	o.errMsg = ""
	o.mu.Unlock()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
			fb := Fallback()
			result = &fb
		}
		cancel()
		outcome = o.finish(gen, len(q), err)
	}()

	raw, err := o.fetcher.FetchAnswer(ctx, o.endpoints.Endpoint(), q)
	if err != nil {
		fb := Fallback()
		return &fb, OutcomeFailed
	}
	res := normalize.Normalize(raw)
	return &res, OutcomeCompleted
}

// finish records the outcome of search gen unless a newer search has started since.
// A stale search that still got an answer counts as completed.
func (o *Orchestrator) finish(gen uint64, queryLen int, err error) Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		o.logger.Debug("search superseded", zap.Int("query_len", queryLen), zap.Error(err))
		if err != nil {
			return OutcomeSuperseded
		}
		return OutcomeCompleted
	}
	o.cancel = nil
	if err != nil {
		o.state = StateFailed
		o.errMsg = ErrorMessage(err)
		o.logger.Warn("search failed", zap.Int("query_len", queryLen), zap.Error(err))
		return OutcomeFailed
	}
	o.state = StateCompleted
	return OutcomeCompleted
}

// State returns the state of the most recent search.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether a search is in flight.
func (o *Orchestrator) Busy() bool {
	return o.State() == StateInFlight
}

// Err returns the message of the last failed search, or "" when the last search did not fail.
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

// Cancel aborts the search in flight, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// ErrorMessage turns a transport error into a message fit for the user.
func ErrorMessage(err error) string {
	var statusErr *transport.HTTPStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Search failed: %d %s", statusErr.StatusCode, http.StatusText(statusErr.StatusCode))
	}
	var netErr *transport.NetworkError
	if errors.As(err, &netErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "Search failed: the search service took too long to answer."
		}
		return "Search failed: could not reach the search service. Check your connection and try again."
	}
	return "Search failed: " + err.Error()
}
