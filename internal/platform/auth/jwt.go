package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService 签发/验证持链人凭证。
// ResolveOwner 同时实现引擎消费的 PrincipalResolver：凭证 -> ownerID。
type TokenService interface {
	Sign(ownerID uuid.UUID) (string, error)
	ResolveOwner(ctx context.Context, token string) (uuid.UUID, error)
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func NewHS256Service(secret, issuer string, ttl time.Duration) (TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		return nil, errors.New("jwt issuer is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be > 0")
	}
	return &hs256Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}
