package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kiku/internal/chat"
	"github.com/hyperjump/kiku/internal/conversation"
	"github.com/hyperjump/kiku/internal/history"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/normalize"
	"go.uber.org/zap"
)

const (
	proxyErrorText      = "I'm sorry, but I encountered an error while processing your search. Please try again later."
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxRequestBodyBytes = 1 << 20
)

func (s *Server) handleProxySearch(w http.ResponseWriter, r *http.Request) {
	var req models.ProxyRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondProxyError(w, fmt.Errorf("query parameter is required and must be a string"))
		return
	}
	if err := req.Validate(); err != nil {
		s.respondProxyError(w, err)
		return
	}
	s.logger.Debug("proxy search request", zap.Int("query_len", len(req.Query)))

	raw, err := s.fetcher.FetchAnswer(r.Context(), s.endpoints.Endpoint(), req.Query)
	if err != nil {
		s.logger.Error("proxy search failed", zap.Error(err))
		s.respondProxyError(w, err)
		return
	}
	payload := normalize.Decode(raw)
	s.logger.Debug("proxy search answered", zap.Stringer("shape", payload.Shape))
	s.respondJSON(w, http.StatusOK, payload.Result())
}

func (s *Server) respondProxyError(w http.ResponseWriter, err error) {
	s.respondJSON(w, http.StatusInternalServerError, models.ProxyError{
		Error:   "Search failed: " + err.Error(),
		Text:    proxyErrorText,
		Sources: []models.Source{},
	})
}

type conversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	ActiveID      string                `json:"active_id"`
	Busy          bool                  `json:"busy"`
	Error         string                `json:"error"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.respondJSON(w, http.StatusOK, conversationsResponse{
		Conversations: sess.Conversations(),
		ActiveID:      sess.ActiveID(),
		Busy:          sess.Busy(),
		Error:         sess.Err(),
	})
}

func (s *Server) handleGroupedConversations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	groups := conversation.GroupByDay(sess.Conversations(), time.Now())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "active_id": sess.ActiveID()})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFrom(r.Context())
	conv, err := sess.Ask(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleSelectConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := sessionFrom(r.Context()).Select(id); err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			s.respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"active_id": id})
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).ClearActive()
	s.respondJSON(w, http.StatusOK, map[string]string{"active_id": ""})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !sessionFrom(r.Context()).Delete(id) {
		s.respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if q := r.URL.Query().Get("q"); q != "" {
		results, err := s.history.Search(ctx, user, q, offset+limit)
		if err != nil {
			s.logger.Error("history search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if offset >= len(results) {
			results = results[:0]
		} else {
			results = results[offset:]
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"results": results,
			"offset":  offset,
			"limit":   limit,
		})
		return
	}

	entries, err := s.history.List(ctx, user, offset, limit)
	if err != nil {
		s.logger.Error("history list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.history.Count(ctx, user)
	if err != nil {
		s.logger.Error("history count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete history request", zap.String("id", id))
	err := s.history.Delete(r.Context(), userFrom(r.Context()), id)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
	case errors.Is(err, history.ErrNotFound), errors.Is(err, history.ErrForbidden):
		s.respondError(w, http.StatusNotFound, "history entry not found")
	default:
		s.logger.Error("history delete failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type sessionResponse struct {
	UserID        string `json:"user_id"`
	ActiveID      string `json:"active_id"`
	Conversations int    `json:"conversations"`
	Busy          bool   `json:"busy"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.respondJSON(w, http.StatusOK, sessionResponse{
		UserID:        sess.User(),
		ActiveID:      sess.ActiveID(),
		Conversations: len(sess.Conversations()),
		Busy:          sess.Busy(),
	})
}

// handleEndSession drops the caller's chat session once its pending history
// writes are done, and expires the cookie.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(s.config.SessionCookie)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "no session")
		return
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		s.respondError(w, http.StatusNotFound, "no session")
		return
	}
	s.sessions.Delete(c.Value)
	sess.Wait()
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"sessions":            s.sessions.Count(),
		"history_enabled":     s.history != nil,
		"upstream_configured": s.endpoints.Endpoint() != "",
	}
	if s.history != nil {
		if indexed, err := s.history.IndexedCount(); err != nil {
			s.logger.Warn("status: index count failed", zap.Error(err))
		} else {
			resp["history_indexed"] = indexed
		}
		usage, err := history.MeasureDiskUsage(s.storage.DatabasePath, s.storage.HistoryIndexPath)
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			resp["disk_usage"] = usage
			resp["disk_usage_bytes"] = usage.Total()
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
