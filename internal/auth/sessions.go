package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidSession = errors.New("invalid or expired session")

// Identity is the request-scoped caller.
type Identity struct {
	UserID    string
	Role      Role
	SessionID string
}

type claims struct {
	Role Role   `json:"role"`
	SID  string `json:"sid"`
	jwt.RegisteredClaims
}

// Sessions issues signed session tokens. The token is only honoured while
// its session key lives in Redis, so logout takes effect immediately.
type Sessions struct {
	Redis  redis.Cmdable
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Sessions) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sessions) Issue(ctx context.Context, u User) (string, error) {
	sid := uuid.NewString()
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		SID:  sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	})
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return "", err
	}
	if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeySession, sid), u.ID, s.TTL).Err(); err != nil {
		return "", err
	}
	return signed, nil
}

func (s *Sessions) Verify(ctx context.Context, token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, ErrInvalidSession
	}
	uid, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeySession, c.SID)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && uid != c.Subject) {
		return Identity{}, ErrInvalidSession
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: c.Subject, Role: c.Role, SessionID: c.SID}, nil
}

func (s *Sessions) Revoke(ctx context.Context, sid string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeySession, sid)).Err()
}
