package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/auth"
	"github.com/fleetwatch/fleetwatch/internal/httputil"
	"github.com/fleetwatch/fleetwatch/internal/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login validates credentials against the configured users and issues a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := auth.Authenticate(h.users, req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.Username, user.Role, user.Name)
	if err != nil {
		h.log.Error("token generation failed", "error", err, "username", user.Username)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"username": user.Username,
			"role":     user.Role,
			"name":     user.Name,
		},
	})
}

// Profile returns the identity claims of the authenticated caller.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"role":     claims.Role,
		"name":     claims.Name,
	})
}
