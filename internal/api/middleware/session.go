package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// Context keys set by Sessions.Middleware.
const (
	ContextIdentity = "identity"
	ContextName     = "name"
)

const (
	CookieName        = "seedboard_session"
	defaultSessionTTL = 30 * 24 * time.Hour
)

// SessionClaims is the signed viewer session. It carries the display name and
// the derived identity, never the seed.
type SessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session cookies.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessions returns a session codec. ttl <= 0 uses 30 days.
func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// Sign returns a token for name and identity.
func (s *Sessions) Sign(name string, identity domain.Identity) (string, error) {
	now := s.now()
	claims := SessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its claims.
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || !domain.Identity(claims.Subject).Valid() {
		return nil, errors.New("invalid session")
	}
	return claims, nil
}

// Issue sets the session cookie on the response.
func (s *Sessions) Issue(c echo.Context, name string, identity domain.Identity) error {
	token, err := s.Sign(name, identity)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware injects the identity and name of a valid session cookie into the
// context. Requests without a valid cookie continue anonymously.
func (s *Sessions) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			claims, err := s.Parse(cookie.Value)
			if err != nil {
				c.Logger().Debugf("ignoring session cookie: %v", err)
				return next(c)
			}
			c.Set(ContextIdentity, domain.Identity(claims.Subject))
			c.Set(ContextName, claims.Name)
			return next(c)
		}
	}
}

// IdentityFrom returns the session identity, or "" for anonymous requests.
func IdentityFrom(c echo.Context) domain.Identity {
	id, _ := c.Get(ContextIdentity).(domain.Identity)
	return id
}
