// ABOUTME: Tests for auth service construction and request verification
// ABOUTME: Covers header/scheme defaults, custom headers, and the context middleware

package auth

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mustSignToken signs arbitrary claims with HS256 for tests that need
// tokens the service's own Generate cannot produce.
func mustSignToken(t *testing.T, secret []byte, claims map[string]any) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestNewService(t *testing.T) {
	t.Run("jwt kind", func(t *testing.T) {
		svc, err := NewService("my-jwt", ServiceConfig{Kind: "jwt", Secret: "s3cret"})
		if err != nil {
			t.Fatalf("NewService() error = %v", err)
		}
		if svc.Name() != "my-jwt" {
			t.Errorf("Name() = %q, want my-jwt", svc.Name())
		}
	})

	t.Run("jwt requires a secret", func(t *testing.T) {
		_, err := NewService("my-jwt", ServiceConfig{Kind: "jwt"})
		if err == nil || !strings.Contains(err.Error(), "secret is required") {
			t.Errorf("NewService() error = %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewService("weird", ServiceConfig{Kind: "saml"})
		if err == nil || !strings.Contains(err.Error(), `unknown kind "saml"`) {
			t.Errorf("NewService() error = %v", err)
		}
	})
}

func newTestVerifiers(t *testing.T) *Verifiers {
	t.Helper()
	v, err := NewVerifiers(map[string]ServiceConfig{
		"alpha": {Kind: "jwt", Secret: "alpha-secret"},
		"beta":  {Kind: "jwt", Secret: "beta-secret", Header: "X-Api-Token"},
	})
	if err != nil {
		t.Fatalf("NewVerifiers() error = %v", err)
	}
	return v
}

func bearerToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token, err := NewJWTService("", []byte(secret)).Generate(subject, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return token
}

func TestVerifiers_VerifyRequest(t *testing.T) {
	v := newTestVerifiers(t)

	t.Run("bearer credential verifies its service", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", "Bearer "+bearerToken(t, "alpha-secret", "caller"))

		if got := v.VerifyRequest(r); !reflect.DeepEqual(got, []string{"alpha"}) {
			t.Errorf("VerifyRequest() = %v, want [alpha]", got)
		}
	})

	t.Run("custom header carries the raw token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("X-Api-Token", bearerToken(t, "beta-secret", "caller"))

		if got := v.VerifyRequest(r); !reflect.DeepEqual(got, []string{"beta"}) {
			t.Errorf("VerifyRequest() = %v, want [beta]", got)
		}
	})

	t.Run("multiple services verify independently", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", "Bearer "+bearerToken(t, "alpha-secret", "caller"))
		r.Header.Set("X-Api-Token", bearerToken(t, "beta-secret", "caller"))

		if got := v.VerifyRequest(r); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
			t.Errorf("VerifyRequest() = %v, want [alpha beta]", got)
		}
	})

	t.Run("missing scheme prefix is skipped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", bearerToken(t, "alpha-secret", "caller"))

		if got := v.VerifyRequest(r); got != nil {
			t.Errorf("VerifyRequest() = %v, want none", got)
		}
	})

	t.Run("invalid credential is skipped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", "Bearer not-a-token")

		if got := v.VerifyRequest(r); got != nil {
			t.Errorf("VerifyRequest() = %v, want none", got)
		}
	})

	t.Run("wrong service's secret is skipped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", "Bearer "+bearerToken(t, "beta-secret", "caller"))

		if got := v.VerifyRequest(r); got != nil {
			t.Errorf("VerifyRequest() = %v, want none", got)
		}
	})

	t.Run("bare request verifies nothing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		if got := v.VerifyRequest(r); got != nil {
			t.Errorf("VerifyRequest() = %v, want none", got)
		}
	})
}

func TestVerifiers_Middleware(t *testing.T) {
	v := newTestVerifiers(t)

	var seen []string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Verified(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("verified names reach the handler", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		r.Header.Set("Authorization", "Bearer "+bearerToken(t, "alpha-secret", "caller"))
		handler.ServeHTTP(httptest.NewRecorder(), r)

		if !reflect.DeepEqual(seen, []string{"alpha"}) {
			t.Errorf("Verified() = %v, want [alpha]", seen)
		}
	})

	t.Run("anonymous requests still pass through", func(t *testing.T) {
		seen = []string{"sentinel"}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

		if seen != nil {
			t.Errorf("Verified() = %v, want nil", seen)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestVerified_ContextRoundTrip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := r.Context()

	if got := Verified(ctx); got != nil {
		t.Errorf("Verified(empty) = %v, want nil", got)
	}

	ctx = WithVerified(ctx, []string{"alpha", "beta"})
	if got := Verified(ctx); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("Verified() = %v", got)
	}
}
