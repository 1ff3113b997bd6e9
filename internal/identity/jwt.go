package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the identity fields Lockbox
// needs to rebuild UserInfo from a token.
type Claims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

// LocalProvider implements Provider with HS256 tokens signed by a random
// per-process key. Revoked tokens are remembered until process exit, which
// is enough for a single-process vault.
type LocalProvider struct {
	mu        sync.Mutex
	secretKey []byte
	user      UserInfo
	validity  time.Duration
	revoked   map[string]struct{}
}

// NewLocalProvider builds a provider issuing tokens for user, valid for the
// given duration.
func NewLocalProvider(user UserInfo, validity time.Duration) (*LocalProvider, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return &LocalProvider{
		secretKey: key,
		user:      user,
		validity:  validity,
		revoked:   make(map[string]struct{}),
	}, nil
}

func (p *LocalProvider) GetToken(ctx context.Context, interactive bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:  p.user.Email,
		UserID: p.user.ID,
	})

	signed, err := token.SignedString(p.secretKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) ValidateToken(ctx context.Context, tokenString string) (*UserInfo, error) {
	p.mu.Lock()
	_, revoked := p.revoked[tokenString]
	p.mu.Unlock()
	if revoked {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return &UserInfo{Email: claims.Email, ID: claims.UserID}, nil
}

func (p *LocalProvider) RevokeToken(ctx context.Context, tokenString string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[tokenString] = struct{}{}
	return nil
}
