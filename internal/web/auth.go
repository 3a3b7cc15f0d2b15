package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// handleHashLogin processes the login link issued by the Telegram bot.
// URL format: /auth?user=<username>&hash=<hmac>
func (s *Server) handleHashLogin(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	providedHash := r.URL.Query().Get("hash")
	if username == "" || providedHash == "" {
		writeError(w, http.StatusBadRequest, "invalid_link", "missing user or hash")
		return
	}

	expected := s.loginHash(username)
	if !hmac.Equal([]byte(providedHash), []byte(expected)) {
		s.log.Warn("rejected login link", zap.String("username", username))
		writeError(w, http.StatusUnauthorized, "invalid_link", "invalid or expired login link")
		return
	}

	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to look up user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "unknown_user", "start the Telegram bot first")
		return
	}

	session, _ := s.sessionStore.Get(r, sessionName)
	session.Values[sessionUserIDKey] = user.ID
	if err := session.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}

	s.log.Info("user logged in", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	})
}

// handleLogout clears the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, sessionName)
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// loginHash derives the HMAC the bot embeds in login links
func (s *Server) loginHash(username string) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(username))
	return hex.EncodeToString(h.Sum(nil))
}

// requireAuth rejects requests without a valid session
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionStore.Get(r, sessionName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		userID, ok := session.Values[sessionUserIDKey].(int64)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDContextKey).(int64)
	return id
}
