package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCPFTaken           = errors.New("cpf already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// RegisterInput is the payload of a new account.
type RegisterInput struct {
	Email        string `json:"email"`
	Password     string `json:"senha"`
	Name         string `json:"nome"`
	CPF          string `json:"cpf"`
	Registration string `json:"matricula"`
	Role         string `json:"role"`
}

// UpdateInput is a partial account update. Password is plain text.
type UpdateInput struct {
	Name         *string `json:"nome"`
	Email        *string `json:"email"`
	Password     *string `json:"password"`
	Registration *string `json:"matricula"`
	Role         *string `json:"role"`
	AvatarURL    *string `json:"avatarUrl"`
	FCMToken     *string `json:"fcmToken"`
}

// LoginResult is returned by Authenticate.
type LoginResult struct {
	User store.User `json:"user"`
	TokenPair
}

// Service implements account management on top of a UserRepository.
type Service struct {
	users  store.UserRepository
	tokens *Tokens
	cost   int
	logger *zap.Logger
}

// NewService wires the account service.
func NewService(users store.UserRepository, tokens *Tokens, bcryptCost int, logger *zap.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, tokens: tokens, cost: bcryptCost, logger: logger.Named("auth")}
}

// Tokens exposes the signer for middleware.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Authenticate checks the password and issues a token pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Rejected login.", zap.String("user_id", u.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, TokenPair: pair}, nil
}

// Refresh exchanges an active refresh token for a new pair and deactivates
// the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	active, err := s.users.RefreshTokenActive(ctx, claims.UserID, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !active {
		return TokenPair{}, ErrInvalidToken
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, ErrUserNotFound
	}
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.RevokeRefreshTokens(ctx, u.ID, refreshToken); err != nil {
		s.logger.Warn("Failed to revoke exchanged refresh token.", zap.String("user_id", u.ID), zap.Error(err))
	}
	return pair, nil
}

func (s *Service) issue(ctx context.Context, u store.User) (TokenPair, error) {
	pair, err := s.tokens.Issue(Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SaveRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	existing, err := s.users.ListUsers(ctx)
	if err != nil {
		return store.User{}, err
	}
	for _, u := range existing {
		if u.CPF == in.CPF {
			return store.User{}, ErrCPFTaken
		}
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return store.User{}, err
	}
	u, err := s.users.CreateUser(ctx, store.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		CPF:          in.CPF,
		PasswordHash: hash,
		Registration: in.Registration,
		Email:        strings.TrimSpace(in.Email),
		Role:         in.Role,
	})
	if errors.Is(err, store.ErrConflict) {
		return store.User{}, ErrEmailTaken
	}
	if err != nil {
		return store.User{}, err
	}
	s.logger.Info("Registered user.", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Update applies a partial update, hashing a new password if present.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (store.User, error) {
	patch := store.UserPatch{
		Name:         in.Name,
		Email:        in.Email,
		Registration: in.Registration,
		Role:         in.Role,
		AvatarURL:    in.AvatarURL,
		FCMToken:     in.FCMToken,
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return store.User{}, err
		}
		patch.PasswordHash = &hash
	}
	return s.update(ctx, id, patch)
}

// UpdateFCMToken stores the device push token of a user.
func (s *Service) UpdateFCMToken(ctx context.Context, id, token string) error {
	_, err := s.update(ctx, id, store.UserPatch{FCMToken: &token})
	return err
}

func (s *Service) update(ctx context.Context, id string, patch store.UserPatch) (store.User, error) {
	u, err := s.users.UpdateUser(ctx, id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.User{}, ErrUserNotFound
	case errors.Is(err, store.ErrConflict):
		return store.User{}, ErrEmailTaken
	}
	return u, err
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (store.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUserNotFound
	}
	return u, err
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]store.User, error) {
	return s.users.ListUsers(ctx)
}

// Logout deactivates refreshToken, or every token of the user when it is
// empty.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	return s.users.RevokeRefreshTokens(ctx, userID, refreshToken)
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}
