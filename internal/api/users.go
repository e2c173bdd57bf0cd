package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/auth"
)

// authFailure maps account errors to the statuses the clients expect.
func (s *Server) authFailure(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, "Email ou senha inválidos")
	case errors.Is(err, auth.ErrInvalidToken):
		s.respondError(w, http.StatusUnauthorized, "Refresh token inválido ou expirado")
	case errors.Is(err, auth.ErrEmailTaken):
		s.respondError(w, http.StatusBadRequest, "Email já cadastrado")
	case errors.Is(err, auth.ErrCPFTaken):
		s.respondError(w, http.StatusBadRequest, "CPF já cadastrado")
	case errors.Is(err, auth.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, "Usuário não encontrado")
	default:
		s.logger.Error("Account operation failed.", zap.String("op", op), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type fcmTokenBody struct {
	FCMToken string `json:"fcmToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !s.decode(w, r, schemaLogin, &body) {
		return
	}
	res, err := s.deps.Auth.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		s.authFailure(w, err, "login")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !s.decode(w, r, schemaRefresh, &body) {
		return
	}
	pair, err := s.deps.Auth.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.authFailure(w, err, "refresh")
		return
	}
	s.respondJSON(w, http.StatusOK, pair)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !s.decode(w, r, schemaNewUser, &in) {
		return
	}
	// Only an admin may create another admin.
	if p, _ := auth.PrincipalFrom(r.Context()); in.Role == auth.RoleAdmin && p.Role != auth.RoleAdmin {
		s.logger.Warn("Admin role requested without an admin token; registering as user.", zap.String("email", in.Email))
		in.Role = auth.RoleUser
	}
	if _, err := s.deps.Auth.Register(r.Context(), in); err != nil {
		s.authFailure(w, err, "register")
		return
	}
	s.respondJSON(w, http.StatusCreated, messageEnvelope{Message: "Usuário criado com sucesso"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Auth.List(r.Context())
	if err != nil {
		s.authFailure(w, err, "list")
		return
	}
	s.respondJSON(w, http.StatusOK, dataEnvelope{Data: users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Auth.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.authFailure(w, err, "get")
		return
	}
	s.respondJSON(w, http.StatusOK, dataEnvelope{Data: u})
}

// selfOrAdmin lets callers manage their own account; admins manage any.
func (s *Server) selfOrAdmin(w http.ResponseWriter, r *http.Request) bool {
	p, _ := auth.PrincipalFrom(r.Context())
	if p.ID == chi.URLParam(r, "id") || p.Role == auth.RoleAdmin {
		return true
	}
	s.respondError(w, http.StatusForbidden, "Acesso negado. Permissão insuficiente.")
	return false
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.selfOrAdmin(w, r) {
		return
	}
	var in auth.UpdateInput
	if !s.decode(w, r, schemaUserPatch, &in) {
		return
	}
	if p, _ := auth.PrincipalFrom(r.Context()); in.Role != nil && p.Role != auth.RoleAdmin {
		s.respondError(w, http.StatusForbidden, "Acesso negado. Permissão insuficiente.")
		return
	}
	u, err := s.deps.Auth.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.authFailure(w, err, "update")
		return
	}
	s.respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	if !s.selfOrAdmin(w, r) {
		return
	}
	var body fcmTokenBody
	if !s.decode(w, r, schemaFCMToken, &body) {
		return
	}
	if err := s.deps.Auth.UpdateFCMToken(r.Context(), chi.URLParam(r, "id"), body.FCMToken); err != nil {
		s.authFailure(w, err, "fcm-token")
		return
	}
	s.respondJSON(w, http.StatusOK, messageEnvelope{Message: "FCM Token atualizado com sucesso"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.selfOrAdmin(w, r) {
		return
	}
	var body refreshBody
	if raw, err := readBody(w, r, s.cfg.MaxBodyBytes); err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	if err := s.deps.Auth.Logout(r.Context(), chi.URLParam(r, "id"), body.RefreshToken); err != nil {
		s.authFailure(w, err, "logout")
		return
	}
	s.respondJSON(w, http.StatusOK, messageEnvelope{Message: "Logout realizado com sucesso"})
}
