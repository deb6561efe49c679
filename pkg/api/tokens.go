package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/rs/zerolog/log"
)

const principalKey = "principal"

var errInvalidToken = errors.New("invalid token")

type claims struct {
	AllTasks bool `json:"all_tasks"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *tokenIssuer) issue(p auth.Principal) (string, error) {
	now := t.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AllTasks: p.AllTasks,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	return signed, nil
}

func (t *tokenIssuer) parse(tokenString string) (auth.Principal, error) {
	var c claims

	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return auth.Principal{}, fmt.Errorf("%w: %s", errInvalidToken, err)
	}

	if c.Subject == "" {
		return auth.Principal{}, fmt.Errorf("%w: missing subject", errInvalidToken)
	}

	return auth.Principal{Name: c.Subject, AllTasks: c.AllTasks}, nil
}

// authMiddleware resolves the bearer token into the request's principal.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
		}

		p, err := s.tokens.parse(tokenString)
		if err != nil {
			log.Warn().Err(err).Str("ip", c.RealIP()).Msg("rejected token")

			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(principalKey, p)

		return next(c)
	}
}

func principal(c echo.Context) auth.Principal {
	p, _ := c.Get(principalKey).(auth.Principal)

	return p
}
