// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package httpapi

import (
	"net/http"

	"github.com/dayplan/dayplan/internal/auth"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required"`
}

type redeemRequest struct {
	ResetCode string `json:"resetcode" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldpassword" validate:"required"`
	NewPassword string `json:"newpassword" validate:"required"`
}

type changeEmailRequest struct {
	NewEmail string `json:"newemail" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, u *auth.User, token string) {
	w.Header().Set(TokenHeader, token)
	writeJSON(w, r, s.logger, status, u)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	u, token, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, u, token)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	u, token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u, token)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.accounts.Me(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, u)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if err := s.accounts.Logout(r.Context(), p.user.ID, p.token); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestReset answers 200 whether or not the email is registered.
func (s *Server) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.resets.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) redeemReset(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.resets.RedeemReset(r.Context(), req.ResetCode, req.Password); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id := userID(r)
	token, err := s.accounts.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	u, err := s.accounts.Me(r.Context(), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u, token)
}

func (s *Server) changeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	u, token, err := s.accounts.ChangeEmail(r.Context(), userID(r), req.NewEmail, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u, token)
}
