package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoBearerToken is returned when the Authorization header carries no bearer token.
var ErrNoBearerToken = errors.New("bearer token not found")

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoBearerToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoBearerToken
	}
	return token, nil
}

// TokenVerifier checks JWT signatures against a key source, normally the Supabase JWKS.
type TokenVerifier struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

// jwksRefreshTimeout bounds each fetch of the key set, including the first one.
const jwksRefreshTimeout = 10 * time.Second

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed in the background
// until Close is called. Tokens signed with a kid the set does not know yet trigger a
// rate-limited refetch, so signing-key rotation needs no restart.
func NewJWKSVerifier(jwksURL string) (*TokenVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               context.Background(),
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    jwksRefreshTimeout,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}
	return &TokenVerifier{keyfunc: jwks.Keyfunc, jwks: jwks}, nil
}

// NewKeyfuncVerifier verifies tokens with a caller-provided key lookup.
func NewKeyfuncVerifier(kf jwt.Keyfunc) *TokenVerifier {
	return &TokenVerifier{keyfunc: kf}
}

func (v *TokenVerifier) ValidateToken(tokenStr string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, v.keyfunc,
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *TokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
