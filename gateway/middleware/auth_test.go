package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"gemfarm/crypto"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func signerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signer, ok := SignerFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(signer.String()))
	})
}

func TestAuthenticatorResolvesSignerFromToken(t *testing.T) {
	alice := crypto.NameAddress("alice")
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "gemfarm", Audience: "farmd"}, nil)
	handler := auth.Middleware()(signerEcho())

	token := signToken(t, jwt.MapClaims{
		"sub": alice.String(),
		"iss": "gemfarm",
		"aud": "farmd",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/farms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, alice.String(), res.Body.String())
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	alice := crypto.NameAddress("alice")
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "gemfarm"}, nil)
	handler := auth.Middleware()(signerEcho())

	cases := map[string]string{
		"missing":    "",
		"expired":    "Bearer " + signToken(t, jwt.MapClaims{"sub": alice.String(), "iss": "gemfarm", "exp": time.Now().Add(-time.Hour).Unix()}),
		"issuer":     "Bearer " + signToken(t, jwt.MapClaims{"sub": alice.String(), "iss": "other"}),
		"no signer":  "Bearer " + signToken(t, jwt.MapClaims{"iss": "gemfarm"}),
		"bad signer": "Bearer " + signToken(t, jwt.MapClaims{"sub": "not-an-address", "iss": "gemfarm"}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/farms", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, http.StatusUnauthorized, res.Code)
		})
	}
}

func TestAuthenticatorDisabledUsesSignerHeader(t *testing.T) {
	bob := crypto.NameAddress("bob")
	handler := NewAuthenticator(AuthConfig{}, nil).Middleware()(signerEcho())

	req := httptest.NewRequest(http.MethodPost, "/v1/farms", nil)
	req.Header.Set(HeaderSigner, bob.String())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, bob.String(), res.Body.String())

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/farms", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, "req-1", seen)
	require.Equal(t, "req-1", res.Header().Get(HeaderRequestID))

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.NotEqual(t, "req-1", seen)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://farm.example"}})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/farms", nil)
	req.Header.Set("Origin", "https://farm.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://farm.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/farms", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
