package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	GenerateRefreshToken(user *model.User) (string, error)
	ValidateAccessToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
	AccessTTL() time.Duration
}

type Config struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type jwtService struct {
	cfg Config
	now func() time.Time
}

func NewJWTService(cfg Config) JWTService {
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "fieldservice-api"
	}
	return &jwtService{cfg: cfg, now: time.Now}
}

func (s *jwtService) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	return s.generate(user, model.TokenTypeAccess, s.cfg.Secret, s.cfg.AccessTTL)
}

func (s *jwtService) GenerateRefreshToken(user *model.User) (string, error) {
	return s.generate(user, model.TokenTypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

func (s *jwtService) ValidateAccessToken(token string) (*model.TokenClaims, error) {
	return s.validate(token, model.TokenTypeAccess, s.cfg.Secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	return s.validate(token, model.TokenTypeRefresh, s.cfg.RefreshSecret)
}

func (s *jwtService) generate(user *model.User, tokenType, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *jwtService) validate(tokenString, tokenType, secret string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != tokenType || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
