package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/server/services"
)

const (
	msgSignedUp        = "Signed up successfully"
	msgSignedIn        = "Signed in successfully"
	msgTokenRefreshed  = "Token refreshed successfully"
	msgPasswordChanged = "Password changed successfully"
	msgAccountDeleted  = "Account deleted successfully"
)

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status string            `json:"status"`
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}

func success(msg string) successResponse {
	return successResponse{Status: "success", Message: msg}
}

func errorBody(msg string, fields map[string]string) errorResponse {
	return errorResponse{Status: "error", Error: msg, Errors: fields}
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.users.SignUp(r.Context(), p.signUpAttributes())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTokens(w, pair)
	writeJSON(w, http.StatusCreated, success(msgSignedUp))
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.users.SignIn(r.Context(), p["email"], p["password"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTokens(w, pair)
	writeJSON(w, http.StatusOK, success(msgSignedIn))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.users.Refresh(r.Context(), r.Header.Get(common.RefreshTokenHeaderName))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTokens(w, pair)
	writeJSON(w, http.StatusOK, success(msgTokenRefreshed))
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrorUnauthorized)
		return
	}
	p, err := readParams(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.users.ChangePassword(r.Context(), userID, p["password"], p["password_confirmation"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTokens(w, pair)
	writeJSON(w, http.StatusOK, success(msgPasswordChanged))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrorUnauthorized)
		return
	}

	if err := s.users.Deactivate(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(msgAccountDeleted))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody("database unavailable", nil))
		return
	}
	writeJSON(w, http.StatusOK, success("ok"))
}

func writeTokens(w http.ResponseWriter, pair *services.TokenPair) {
	h := w.Header()
	h.Set(common.AccessTokenHeaderName, pair.AccessToken)
	h.Set(common.ExpireAtHeaderName, strconv.FormatInt(pair.ExpiresAt.Unix(), 10))
	h.Set(common.RefreshTokenHeaderName, pair.RefreshToken)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError is the single place where error kinds become status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(common.ErrValidation.Error(), verr.Violations.Map()))
	case errors.Is(err, errMalformedBody):
		writeJSON(w, http.StatusBadRequest, errorBody(errMalformedBody.Error(), nil))
	case errors.Is(err, common.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(common.ErrInvalidCredentials.Error(), nil))
	case errors.Is(err, common.ErrExpiredOrInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody(common.ErrExpiredOrInvalid.Error(), nil))
	case errors.Is(err, common.ErrorUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody(common.ErrorUnauthorized.Error(), nil))
	case errors.Is(err, common.ErrTransientStore):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody(common.ErrTransientStore.Error(), nil))
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(common.ErrorInternal.Error(), nil))
	}
}
