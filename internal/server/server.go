package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"github.com/pathakanu/flowcall/internal/reminder"
	"github.com/pathakanu/flowcall/internal/session"
	"github.com/pathakanu/flowcall/internal/store"
)

// Server exposes sign-in and reminder CRUD over JSON. All reminder routes
// require a valid bearer token.
type Server struct {
	sessions *session.Manager
	users    *store.UserStore
	manager  *reminder.Manager
	logger   *log.Logger
}

// New creates the HTTP surface around the lifecycle manager.
func New(sessions *session.Manager, users *store.UserStore, manager *reminder.Manager, logger *log.Logger) *Server {
	return &Server{sessions: sessions, users: users, manager: manager, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /signin", s.handleSignin)
	mux.Handle("GET /reminders", s.authenticated(s.handleListReminders))
	mux.Handle("POST /reminders", s.authenticated(s.handleCreateReminder))
	mux.Handle("PUT /reminders/{id}", s.authenticated(s.handleUpdateReminder))
	mux.Handle("DELETE /reminders/{id}", s.authenticated(s.handleDeleteReminder))
	return mux
}

type contextKey string

const userKey contextKey = "user"

// authenticated resolves the bearer token to a user and stashes it in the
// request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.sessions.Validate(token)
		if err != nil {
			if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrExpiredToken) {
				s.writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			s.logger.Printf("server: validate session: %v", err)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func requestUser(r *http.Request) *model.User {
	user, _ := r.Context().Value(userKey).(*model.User)
	return user
}

type signinRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type signinResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		s.writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	user, err := s.users.FindOrCreateByPhone(strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		s.logger.Printf("server: signin: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sess, err := s.sessions.Issue(user)
	if err != nil {
		s.logger.Printf("server: issue session: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, signinResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
	})
}

type reminderRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	PhoneToCall   *string `json:"phone_to_call"`
	ScheduledTime *string `json:"scheduled_time"`
}

type reminderResponse struct {
	ID            uint         `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	PhoneToCall   string       `json:"phone_to_call"`
	ScheduledTime *time.Time   `json:"scheduled_time"`
	Status        model.Status `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

func toResponse(rem *model.Reminder) reminderResponse {
	return reminderResponse{
		ID:            rem.ID,
		Title:         rem.Title,
		Description:   rem.Description,
		PhoneToCall:   rem.PhoneToCall,
		ScheduledTime: rem.ScheduledTime,
		Status:        rem.Status,
		CreatedAt:     rem.CreatedAt,
	}
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	scheduled, err := parseScheduledTime(req.ScheduledTime)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := reminder.CreateInput{ScheduledTime: scheduled}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.PhoneToCall != nil {
		in.PhoneToCall = *req.PhoneToCall
	}

	created, err := s.manager.Create(requestUser(r), in)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toResponse(created))
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	scheduled, err := parseScheduledTime(req.ScheduledTime)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.manager.Update(requestUser(r), id, reminder.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		PhoneToCall:   req.PhoneToCall,
		ScheduledTime: scheduled,
	})
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	if err := s.manager.Delete(requestUser(r), id); err != nil {
		s.writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ListFilter{
		Search: query.Get("q"),
		Status: model.Status(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	reminders, err := s.manager.List(requestUser(r), filter)
	if err != nil {
		s.logger.Printf("server: list reminders: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]reminderResponse, 0, len(reminders))
	for i := range reminders {
		out = append(out, toResponse(&reminders[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reminders": out})
}

func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	var validation *reminder.ValidationError
	switch {
	case errors.As(err, &validation):
		s.writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, reminder.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "reminder not found")
	default:
		s.logger.Printf("server: reminder operation: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("server: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseScheduledTime accepts RFC 3339 only, so every input carries an offset
// and comparisons stay unambiguous.
func parseScheduledTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, errors.New("scheduled_time must be RFC 3339 with an offset")
	}
	utc := parsed.UTC()
	return &utc, nil
}
