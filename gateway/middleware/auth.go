package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"gemfarm/crypto"
	"gemfarm/observability/logging"
)

// HeaderSigner names the signer directly when authentication is disabled.
// It is ignored once bearer tokens are enforced.
const HeaderSigner = "X-Gemfarm-Signer"

type AuthConfig struct {
	Enabled     bool
	HMACSecret  string
	Issuer      string
	Audience    string
	SignerClaim string
	ClockSkew   time.Duration
}

type contextKey string

const (
	ContextKeyToken  contextKey = "gateway.token"
	ContextKeySigner contextKey = "gateway.signer"
)

// WithSigner attaches the authenticated signer to ctx.
func WithSigner(ctx context.Context, signer crypto.Address) context.Context {
	return context.WithValue(ctx, ContextKeySigner, signer)
}

// SignerFromContext returns the signer attached by the authenticator.
func SignerFromContext(ctx context.Context) (crypto.Address, bool) {
	signer, ok := ctx.Value(ContextKeySigner).(crypto.Address)
	if !ok || signer.IsZero() {
		return crypto.Address{}, false
	}
	return signer, true
}

// Authenticator resolves the signing address of each request. Manager, owner
// and funder checks in the ledger are made against this address.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignerClaim == "" {
		cfg.SignerClaim = "sub"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth")),
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
	}
}

func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.cfg.Enabled {
				signer, err := crypto.DecodeAddress(strings.TrimSpace(r.Header.Get(HeaderSigner)))
				if err != nil {
					http.Error(w, "missing or invalid signer", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSigner(r.Context(), signer)))
				return
			}
			tokenString := extractBearer(r.Header.Get("Authorization"))
			if tokenString == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := a.parseToken(tokenString)
			if err != nil {
				a.logger.Warn("token validation failed",
					logging.MaskField("token", tokenString),
					slog.String("error", err.Error()))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if err := validateClaims(claims, a.cfg.Issuer, a.cfg.Audience); err != nil {
				a.logger.Warn("claim validation failed", slog.String("error", err.Error()))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			signer, err := signerFromClaims(claims, a.cfg.SignerClaim)
			if err != nil {
				a.logger.Warn("signer claim rejected", slog.String("error", err.Error()))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyToken, tokenString)
			next.ServeHTTP(w, r.WithContext(WithSigner(ctx, signer)))
		})
	}
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			matched := false
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					matched = true
					break
				}
			}
			if !matched {
				return errors.New("audience mismatch")
			}
		default:
			return errors.New("audience missing")
		}
	}
	return nil
}

func signerFromClaims(claims jwt.MapClaims, claim string) (crypto.Address, error) {
	raw, ok := claims[claim].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return crypto.Address{}, errors.New("signer claim missing")
	}
	signer, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, err
	}
	if signer.IsZero() {
		return crypto.Address{}, errors.New("signer is the zero address")
	}
	return signer, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
