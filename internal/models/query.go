// Package models defines the data structures shared by the transport, the
// conversation store, the HTTP API and the history store.
package models

import (
	"fmt"
	"strings"
)

// ProxyRequest is the body accepted by the same-origin proxy route.
type ProxyRequest struct {
	Query string `json:"query"`
}

// Validate trims the query and returns an error if nothing is left.
func (r *ProxyRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query parameter is required and must be a non-empty string")
	}
	return nil
}

// ProxyError is the envelope the proxy route returns with HTTP 500.
type ProxyError struct {
	Error   string   `json:"error"`
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// AskRequest is the body accepted by the conversation ask route.
type AskRequest struct {
	Query string `json:"query"`
}

// CleanQuery trims q and reports whether anything is left to send.
func CleanQuery(q string) (string, bool) {
	q = strings.TrimSpace(q)
	return q, q != ""
}
