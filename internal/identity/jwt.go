package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/golang-jwt/jwt/v5"
)

// AppClaims defines our custom JWT claims structure.
type AppClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HMAC-signed tokens minted by the account service.
type JWTProvider struct {
	secret []byte
	logger *slog.Logger
}

var _ Provider = (*JWTProvider)(nil)

func NewJWTProvider(secret string, logger *slog.Logger) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		logger: logger.With(slog.String("component", "identity_jwt")),
	}
}

func (p *JWTProvider) Verify(_ context.Context, credential string) (state.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &AppClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		p.logger.Warn("Rejected credential", slog.Any("error", err))
		return state.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok {
		return state.Identity{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidCredential)
	}
	if claims.Subject == "" {
		p.logger.Warn("Valid token missing 'sub' claim")
		return state.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	// Tokens without a username claim fall back to the subject.
	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	return state.Identity{ID: claims.Subject, Username: username}, nil
}

// Issue mints a token for the given player. The server itself never calls
// this; it exists for tooling and tests.
func (p *JWTProvider) Issue(playerID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AppClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
