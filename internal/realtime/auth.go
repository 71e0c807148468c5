package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthNotConfigured = errors.New("realtime auth secret is not configured")
	ErrMissingToken      = errors.New("missing token")
)

// Claims - полезная нагрузка токена клиента службы
type Claims struct {
	ResponderID string `json:"id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Responder возвращает идентификатор службы из токена
func (c *Claims) Responder() string {
	if c.ResponderID != "" {
		return c.ResponderID
	}
	return c.RegisteredClaims.Subject
}

// Authenticator проверяет HS256 токены при установке websocket соединения
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate извлекает токен из параметра token или заголовка Authorization
func (a *Authenticator) Authenticate(r *http.Request) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrAuthNotConfigured
	}

	raw := r.URL.Query().Get("token")
	if raw == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Responder() == "" {
		return nil, errors.New("invalid token: no responder id")
	}
	return claims, nil
}
