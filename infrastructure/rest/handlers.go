package rest

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// NextCursorHeader carries the cursor of the next history page, if any.
const NextCursorHeader = "X-Next-Cursor"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type profileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, "test.ok")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.identity(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no token")
		return
	}
	s.writeJSON(w, http.StatusOK, profileResponse{UserID: identity.ID, Username: identity.Username})
}

func (s *Server) handlePeople(w http.ResponseWriter, _ *http.Request) {
	people, err := s.chatService.People()
	if err != nil {
		s.log.Error("Failed to list people", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, lo.Map(people, func(i domain.Identity, _ int) profileResponse {
		return profileResponse{UserID: i.ID, Username: i.Username}
	}))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.identity(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no token")
		return
	}

	cmd := domain.GetConversationCommand{
		UserID:  identity.ID,
		OtherID: chi.URLParam(r, "userId"),
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}

	messages, next, err := s.chatService.History(cmd)
	if err != nil {
		s.log.Error("Failed to read history", "user_id", identity.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if next != nil {
		w.Header().Set(NextCursorHeader, *next)
	}
	s.writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:        m.ID.String(),
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		}
	}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	session, err := s.authService.Login(body.Username, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.setTokenCookie(w, session.Token)
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: session.Identity.ID, Username: session.Identity.Username})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	session, err := s.authService.Register(body.Username, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.setTokenCookie(w, session.Token)
	s.writeJSON(w, http.StatusCreated, sessionResponse{ID: session.Identity.ID, Username: session.Identity.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearTokenCookie(w)
	s.writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidRegistration):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		s.writeError(w, http.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.log.Error("Account request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}
