package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backend-postboard/internal/profile"
	"backend-postboard/internal/users"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 24 * time.Hour

var ErrTokenInvalid = errors.New("token invalid")

type Service struct {
	secret []byte
	ttl    time.Duration
	users  *users.Repository
	images *profile.Repository
}

type Claims struct {
	Username string `json:"username"`
	Session  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func NewService(secret string, ttl time.Duration, userRepo *users.Repository, images *profile.Repository) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		users:  userRepo,
		images: images,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (TokenResponse, error) {
	cred, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		return TokenResponse{}, err
	}
	return s.IssueToken(cred)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	cred, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return TokenResponse{}, err
	}
	return s.IssueToken(cred)
}

// UpdateProfile changes the caller's password and possibly their name. The
// record gets a new session, so every earlier token stops working and a fresh
// one is returned. After a rename the profile image follows.
func (s *Service) UpdateProfile(ctx context.Context, current, session string, req ProfileRequest) (TokenResponse, error) {
	cred, err := s.users.UpdateProfile(ctx, current, session, req.Username, req.Password)
	if err != nil {
		return TokenResponse{}, err
	}
	if s.images != nil && cred.Username != current {
		if err := s.images.Move(ctx, current, cred.Username); err != nil {
			slog.WarnContext(ctx, "profile image not moved", "from", current, "to", cred.Username, "error", err)
		}
	}
	return s.IssueToken(cred)
}

func (s *Service) IssueToken(cred users.Credential) (TokenResponse, error) {
	token, err := signTokenFn(s, cred.Username, cred.Session, s.ttl)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
		Username:    cred.Username,
	}, nil
}

// ValidateAccessToken checks the signature and expiry, then that the token's
// session is still the one on record.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if s.users != nil {
		if err := s.users.CheckSession(ctx, claims.Username, claims.Session); err != nil {
			return "", err
		}
	}
	return claims.Username, nil
}

var signTokenFn = func(s *Service, username, session string, ttl time.Duration) (string, error) {
	return s.signToken(username, session, ttl)
}

var parseWithClaimsFn = jwt.ParseWithClaims

func (s *Service) signToken(username, session string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Session:  session,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
