package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// GuestCookie is the opaque session token the web layer issues per browser
// session; it scopes guest carts.
const GuestCookie = "guest_session"

const (
	ctxOwnerKey  = "owner_key"
	ctxIsAccount = "is_account"
	ctxIsAdmin   = "is_admin"
)

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccountOwnerKey and GuestOwnerKey keep the two owner namespaces disjoint
// so a forged guest cookie can never collide with an account key.
func AccountOwnerKey(accountID string) string { return "acct:" + accountID }

func GuestOwnerKey(sessionToken string) string { return "sess:" + sessionToken }

// Middleware resolves the owner key for the request: a bearer token maps to
// the account key (with role), otherwise the guest cookie maps to a session
// key. The resolved key is the only identity the core layers ever see.
func Middleware(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(auth, "Bearer ") {
				raw := strings.TrimPrefix(auth, "Bearer ")
				claims, err := parseAccessToken(raw, jwtSecret)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				c.Set(ctxOwnerKey, AccountOwnerKey(claims.Subject))
				c.Set(ctxIsAccount, true)
				c.Set(ctxIsAdmin, claims.Role == "admin")
				return next(c)
			}

			if ck, err := c.Cookie(GuestCookie); err == nil && ck.Value != "" {
				c.Set(ctxOwnerKey, GuestOwnerKey(ck.Value))
			}
			return next(c)
		}
	}
}

func parseAccessToken(raw string, secret []byte) (*accessClaims, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}

func OwnerKey(c echo.Context) string {
	if v, ok := c.Get(ctxOwnerKey).(string); ok {
		return v
	}
	return ""
}

func IsAccount(c echo.Context) bool {
	v, _ := c.Get(ctxIsAccount).(bool)
	return v
}

func IsAdmin(c echo.Context) bool {
	v, _ := c.Get(ctxIsAdmin).(bool)
	return v
}

// RequireOwner rejects requests with neither an account token nor a guest
// session cookie.
func RequireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if OwnerKey(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

func RequireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAccount(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
		return next(c)
	}
}
