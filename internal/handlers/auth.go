package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/auth"
	"github.com/ukydev/bridge-traffic-sim/internal/db"
	"github.com/ukydev/bridge-traffic-sim/internal/middleware"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// AuthHandler handles operator authentication requests
type AuthHandler struct {
	authService *auth.Service
	operators   db.OperatorCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, operators db.OperatorCollection) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		operators:   operators,
	}
}

// Login handles operator login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	op, err := h.operators.FindOperator(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrOperatorNotFound) {
			log.WithError(err).WithField("username", loginReq.Username).Error("Failed to look up operator")
		}
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	switch err := h.authService.Authenticate(op, loginReq.Password); {
	case errors.Is(err, auth.ErrOperatorInactive):
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	case err != nil:
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.authService.GenerateToken(op)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	if err := h.operators.UpdateLastLogin(r.Context(), op.Username); err != nil {
		log.WithError(err).WithField("username", op.Username).Warn("Failed to update last login")
	}

	log.WithFields(log.Fields{"username": op.Username, "role": op.Role}).Info("Operator logged in")
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Operator:  *op,
	})
}

// Me returns the claims of the calling operator
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetOperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "Operator context not found", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}
