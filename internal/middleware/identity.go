package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storyforge/internal/domain"
)

// SessionHeader carries the anonymous session id for unauthenticated
// requests. Anonymous and signed-in identities share one ledger keyspace.
const SessionHeader = "X-Session-ID"

type TokenClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Locale   string `json:"locale,omitempty"`
	Exp      int64  `json:"exp"`
	Issuer   string `json:"iss,omitempty"`
	Audience string `json:"aud,omitempty"`
}

type identityContextKey struct{}

var identityKey = identityContextKey{}

func SignJWT(secret string, claims TokenClaims) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, _ := json.Marshal(header)
	payloadJSON, _ := json.Marshal(claims)
	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	data := headerEnc + "." + payloadEnc
	sig := hmacSign(secret, data)
	return data + "." + sig, nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func VerifyJWT(secret, token string) (*TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid token")
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, errors.New("invalid signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return nil, errors.New("token expired")
	}
	return &claims, nil
}

// Identity resolves the caller's identity: a verified Bearer JWT yields a
// user identity, an X-Session-ID header an anonymous one. Requests with
// neither, or with a bad token, are rejected.
func Identity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					http.Error(w, "invalid authorization", http.StatusUnauthorized)
					return
				}
				claims, err := VerifyJWT(secret, parts[1])
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				identity := domain.UserIdentity(claims.Sub)
				identity.Email = claims.Email
				identity.Name = claims.Name
				ctx := ContextWithIdentity(r.Context(), identity)
				if claims.Locale != "" {
					ctx = context.WithValue(ctx, LocaleKey, normalizeLocale(claims.Locale))
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if sessionID == "" {
				http.Error(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			identity := domain.AnonymousIdentity(sessionID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext returns the resolved identity, zero when absent.
func IdentityFromContext(ctx context.Context) domain.Identity {
	if v, ok := ctx.Value(identityKey).(domain.Identity); ok {
		return v
	}
	return domain.Identity{}
}

func ContextWithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
