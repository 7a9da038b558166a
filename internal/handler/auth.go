package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/warung-pos/api/internal/auth"
	"github.com/warung-pos/api/internal/store"
)

// StaffStore defines the database methods needed by auth handlers.
// Satisfied by *store.Store; narrow interface for testability.
type StaffStore interface {
	GetStaffByUsername(ctx context.Context, username string) (store.Staff, error)
}

// AuthHandler handles login.
type AuthHandler struct {
	store     StaffStore
	jwtSecret string
}

func NewAuthHandler(store StaffStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	Staff store.Staff `json:"staff"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	staff, err := h.store.GetStaffByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrStaffNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: login: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := auth.CheckPassword(staff.PasswordHash, req.Password); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, staff.ID, staff.Role)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Staff: staff})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}
