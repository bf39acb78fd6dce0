package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("access-secret")

func mintToken(t *testing.T, secret []byte, subject, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func runMiddleware(t *testing.T, mutate func(*http.Request)) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(testSecret)(func(c echo.Context) error { return nil })
	return c, handler(c)
}

func TestMiddleware_BearerToken(t *testing.T) {
	token := mintToken(t, testSecret, "user-42", "customer", time.Hour)

	c, err := runMiddleware(t, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	require.NoError(t, err)

	assert.Equal(t, "acct:user-42", OwnerKey(c))
	assert.True(t, IsAccount(c))
	assert.False(t, IsAdmin(c))
}

func TestMiddleware_AdminRole(t *testing.T) {
	token := mintToken(t, testSecret, "ops-1", "admin", time.Hour)

	c, err := runMiddleware(t, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	require.NoError(t, err)
	assert.True(t, IsAdmin(c))
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: mintTokenWith(t, []byte("other-secret"), "user-42")},
		{name: "expired", token: mintToken(t, testSecret, "user-42", "customer", -time.Hour)},
		{name: "no subject", token: mintToken(t, testSecret, "", "customer", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.token)
			})
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func mintTokenWith(t *testing.T, secret []byte, subject string) string {
	t.Helper()
	return mintToken(t, secret, subject, "customer", time.Hour)
}

func TestMiddleware_GuestCookie(t *testing.T) {
	c, err := runMiddleware(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: GuestCookie, Value: "tok-abc"})
	})
	require.NoError(t, err)

	assert.Equal(t, "sess:tok-abc", OwnerKey(c))
	assert.False(t, IsAccount(c))
	assert.False(t, IsAdmin(c))
}

func TestMiddleware_AnonymousHasNoOwner(t *testing.T) {
	c, err := runMiddleware(t, nil)
	require.NoError(t, err)
	assert.Empty(t, OwnerKey(c))
}

func TestOwnerKeyNamespacesDisjoint(t *testing.T) {
	// A guest session value equal to an account id must never resolve to
	// that account's cart.
	assert.NotEqual(t, AccountOwnerKey("user-42"), GuestOwnerKey("user-42"))
}

func TestRequireOwner(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireOwner(next)(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("owner_key", "sess:tok")
	assert.NoError(t, RequireOwner(next)(c))
}

func TestRequireAccount(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("owner_key", "sess:tok")
	err := RequireAccount(next)(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code, "guest sessions cannot merge carts")

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("is_account", true)
	assert.NoError(t, RequireAccount(next)(c))
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("is_account", true)
	err := RequireAdmin(next)(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("is_admin", true)
	assert.NoError(t, RequireAdmin(next)(c))
}
