package http

import (
	"net/http"
	"time"
)

type passwordRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// handleAuthSetup creates the single credential on first run.
func (s *Server) handleAuthSetup(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.auth.Setup(r.Context(), req.Password); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
	})
}

// handleAuthCheck reports token validity. The middleware already
// rejected invalid tokens, so reaching here means the token is good.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
