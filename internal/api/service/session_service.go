package service

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/models"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid session token")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownMode    = errors.New("unknown mode")
)

// Claims are carried by a session token.
type Claims struct {
	Mode    session.Mode `json:"mode"`
	Profile string       `json:"profile"`
	jwt.RegisteredClaims
}

// SessionService defines the interface for session-related business logic.
type SessionService interface {
	Create(ctx context.Context, req *models.CreateSessionRequest) (*models.CreateSessionResponse, error)
	Parse(ctx context.Context, token string) (*Claims, error)
	Profiles() []models.ProfileResponse
	Profile(name string) (bot.Profile, error)
}

type sessionService struct {
	secret   []byte
	ttl      time.Duration
	profiles *bot.Profiles
	now      func() time.Time
}

// NewSessionService creates a SessionService signing tokens with secret.
func NewSessionService(secret string, ttl time.Duration, profiles *bot.Profiles) SessionService {
	return &sessionService{
		secret:   []byte(secret),
		ttl:      ttl,
		profiles: profiles,
		now:      time.Now,
	}
}

// Create picks the mode and opponent for a new session and issues its token.
func (s *sessionService) Create(ctx context.Context, req *models.CreateSessionRequest) (*models.CreateSessionResponse, error) {
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, err)
	}
	profile, err := s.Profile(req.Profile)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := s.now()
	expiresAt := now.Add(s.ttl)

	// Create JWT token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Mode:    mode,
		Profile: profile.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &models.CreateSessionResponse{
		SessionID: id,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		Mode:      string(mode),
		Profile:   profile.Name,
		Profiles:  s.Profiles(),
	}, nil
}

// Parse verifies a token and returns its claims.
func (s *sessionService) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Profile resolves an opponent tier; an empty name selects the default.
func (s *sessionService) Profile(name string) (bot.Profile, error) {
	if name == "" {
		return s.profiles.Default(), nil
	}
	p, ok := s.profiles.Lookup(name)
	if !ok {
		return bot.Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Profiles lists the opponent tiers in order.
func (s *sessionService) Profiles() []models.ProfileResponse {
	list := s.profiles.List()
	out := make([]models.ProfileResponse, 0, len(list))
	for _, p := range list {
		out = append(out, models.ProfileResponse{
			Name:       p.Name,
			Difficulty: string(p.Difficulty),
			ThinkMinMs: p.ThinkMin.Milliseconds(),
			ThinkMaxMs: p.ThinkMax.Milliseconds(),
			ErrorRate:  p.ErrorRate,
		})
	}
	return out
}
