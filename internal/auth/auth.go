// Package auth resolves the identity behind an HTTP request.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
)

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 32

const DefaultCookieName = "session"

var (
	ErrNoCredentials = fmt.Errorf("no credentials: %w", apperrors.ErrUnauthorized)
	ErrInvalidToken  = fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	ErrExpiredToken  = fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized)
	ErrWeakSecret    = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
)

// Session is an authenticated caller.
type Session struct {
	UserID string
}

// Authenticator returns the session for a request, or an error wrapping
// apperrors.ErrUnauthorized.
type Authenticator interface {
	Authenticate(r *http.Request) (*Session, error)
}

// JWTAuthenticator accepts HS256 tokens from the Authorization header or a
// session cookie. The sub claim is the user id.
type JWTAuthenticator struct {
	secret     []byte
	cookieName string
	issuer     string
	now        func() time.Time
}

func NewJWTAuthenticator(secret []byte, cookieName, issuer string) (*JWTAuthenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &JWTAuthenticator{secret: secret, cookieName: cookieName, issuer: issuer, now: time.Now}, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Session, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if c, err := r.Cookie(a.cookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return nil, ErrNoCredentials
	}

	userID, err := a.Verify(token)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: userID}, nil
}

// Verify validates a token and returns its subject.
func (a *JWTAuthenticator) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return sub, nil
}

// Generate issues a token for userID valid for ttl.
func (a *JWTAuthenticator) Generate(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", apperrors.InvalidInput("user id is empty")
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    a.issuer,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
