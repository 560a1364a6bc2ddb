package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key"

// generateTestToken генерирует JWT токен для тестов.
func generateTestToken(key *rsa.PrivateKey, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	return token.SignedString(key)
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// newTestJWTAuth создаёт JWTAuth с RSA ключом для тестов.
func newTestJWTAuth(t *testing.T) (*JWTAuth, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc из JWKS JSON: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewJWTAuthWithKeyfunc(kf, 5*time.Second, logger), key
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Groups:     []string{"/staff", "/guests"},
		ScopeArray: []string{"staging:read", ScopeWrite},
	}
}

// TestJWTAuth_ValidToken — AuthContext строится из sub и первой группы.
func TestJWTAuth_ValidToken(t *testing.T) {
	auth, key := newTestJWTAuth(t)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := AuthFromContext(r.Context())
		if !ok {
			t.Fatal("AuthContext отсутствует в контексте")
		}
		if ac.UserID != "user-1" || ac.GroupID != "staff" {
			t.Errorf("неожиданный AuthContext: %+v", ac)
		}
		if scopes := ScopesFromContext(r.Context()); len(scopes) != 2 {
			t.Errorf("неожиданные scopes: %v", scopes)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tokenString, err := generateTestToken(key, validClaims())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingests/obj-1", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_Rejected — токены, которые не должны пройти проверку.
func TestJWTAuth_Rejected(t *testing.T) {
	auth, key := newTestJWTAuth(t)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noGroup := validClaims()
	noGroup.Groups = nil
	noSubject := validClaims()
	noSubject.Subject = ""

	token := func(c Claims) string {
		s, err := generateTestToken(key, c)
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + s
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"нет заголовка", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"без префикса", "token123", http.StatusUnauthorized},
		{"просроченный", token(expired), http.StatusUnauthorized},
		{"без sub", token(noSubject), http.StatusUnauthorized},
		{"без группы", token(noGroup), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingests/obj-1/prepare", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d", tt.want, rec.Code)
			}
		})
	}
}

func TestClaims_GroupID(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"group", Claims{Group: "staff", Groups: []string{"other"}}, "staff"},
		{"groups keycloak", Claims{Groups: []string{"/staff"}}, "staff"},
		{"пусто", Claims{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.claims.GroupID(); got != tt.want {
				t.Errorf("GroupID() = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}

func TestClaims_Scopes(t *testing.T) {
	c := Claims{ScopeString: "openid staging:read", ScopeArray: []string{ScopeWrite}}
	scopes := c.Scopes()
	if len(scopes) != 3 || scopes[2] != ScopeWrite {
		t.Errorf("неожиданные scopes: %v", scopes)
	}
}

// TestRequireScope — проверка scope на изменяющих операциях.
func TestRequireScope(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   int
	}{
		{"есть scope", []string{"staging:read", ScopeWrite}, http.StatusOK},
		{"нет scope", []string{"staging:read"}, http.StatusForbidden},
		{"нет scopes в контексте", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireScope(ScopeWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			ctx := context.Background()
			if tt.scopes != nil {
				ctx = context.WithValue(ctx, ContextKeyScopes, tt.scopes)
			}
			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d", tt.want, rec.Code)
			}
		})
	}
}

func TestAuthFromContext_Empty(t *testing.T) {
	if _, ok := AuthFromContext(context.Background()); ok {
		t.Error("AuthContext не должен находиться в пустом контексте")
	}
}
