package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/hyperjump/kiku/internal/chat"
	"go.uber.org/zap"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

type ctxKey int

const (
	sessionKey ctxKey = iota
	userKey
)

// cors sets the CORS headers on every response and answers preflight requests directly.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.config.AllowedOrigins) == 0 || slices.Contains(s.config.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.config.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withUser stores the signed-in user, as passed by the fronting auth proxy, in the request context.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := strings.TrimSpace(r.Header.Get(s.auth.UserHeader)); user != "" {
			r = r.WithContext(context.WithValue(r.Context(), userKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r.Context()) == "" {
			s.respondError(w, http.StatusUnauthorized, "sign in to use search history")
			return
		}
		if s.history == nil {
			s.respondError(w, http.StatusNotImplemented, "history not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withSession attaches the caller's chat session, creating it and setting the
// session cookie on first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.config.SessionCookie); err == nil {
			id = c.Value
		}
		sess, newID, created := s.sessions.GetOrCreate(id)
		if created || newID != id {
			s.logger.Debug("created chat session", zap.String("session_id", newID))
			http.SetCookie(w, &http.Cookie{
				Name:     s.config.SessionCookie,
				Value:    newID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		sess.SetUser(userFrom(r.Context()))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

func sessionFrom(ctx context.Context) *chat.Session {
	sess, _ := ctx.Value(sessionKey).(*chat.Session)
	return sess
}
