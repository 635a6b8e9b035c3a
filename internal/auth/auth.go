// ABOUTME: Named auth services that verify caller credentials on incoming requests
// ABOUTME: Verified service names flow through the request context to tool authorization

package auth

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ServiceConfig is the YAML authoring shape for one entry under authServices.
// Header defaults to Authorization. Scheme defaults to Bearer when the
// header is Authorization and to the raw header value otherwise.
type ServiceConfig struct {
	Kind   string `yaml:"kind"`
	Secret string `yaml:"secret"`
	Header string `yaml:"header"`
	Scheme string `yaml:"scheme"`
}

// Service verifies one kind of caller credential. Tools reference services
// by name in their authRequired list.
type Service interface {
	Name() string

	// Verify checks a single credential string and returns the
	// authenticated subject.
	Verify(credential string) (subject string, err error)
}

// NewService builds the verifier for one configured auth service.
func NewService(name string, cfg ServiceConfig) (Service, error) {
	switch cfg.Kind {
	case "jwt":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("auth service %q: secret is required", name)
		}
		return NewJWTService(name, []byte(cfg.Secret)), nil
	default:
		return nil, fmt.Errorf("auth service %q: unknown kind %q", name, cfg.Kind)
	}
}

// entry pairs a service with the request slot its credential arrives in.
type entry struct {
	service Service
	header  string
	scheme  string
}

// Verifiers resolves which configured auth services a request satisfies.
// Built once at startup and read-only afterwards.
type Verifiers struct {
	entries []entry
}

// NewVerifiers builds every configured auth service. Service order follows
// sorted names so verification results are stable run to run.
func NewVerifiers(configs map[string]ServiceConfig) (*Verifiers, error) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	v := &Verifiers{entries: make([]entry, 0, len(names))}
	for _, name := range names {
		cfg := configs[name]
		svc, err := NewService(name, cfg)
		if err != nil {
			return nil, err
		}

		header := cfg.Header
		if header == "" {
			header = "Authorization"
		}
		scheme := cfg.Scheme
		if scheme == "" && header == "Authorization" {
			scheme = "Bearer"
		}
		v.entries = append(v.entries, entry{service: svc, header: header, scheme: scheme})
	}
	return v, nil
}

// Len reports the number of configured auth services.
func (v *Verifiers) Len() int { return len(v.entries) }

// VerifyRequest returns the names of every service whose credential on the
// request verifies. A missing or invalid credential leaves that service
// unverified; it is not an error, unauthenticated callers can still reach
// tools without an authRequired list.
func (v *Verifiers) VerifyRequest(r *http.Request) []string {
	var verified []string
	for _, e := range v.entries {
		credential := r.Header.Get(e.header)
		if credential == "" {
			continue
		}
		if e.scheme != "" {
			prefix := e.scheme + " "
			if !strings.HasPrefix(credential, prefix) {
				continue
			}
			credential = strings.TrimPrefix(credential, prefix)
			if credential == "" {
				continue
			}
		}
		if _, err := e.service.Verify(credential); err != nil {
			continue
		}
		verified = append(verified, e.service.Name())
	}
	return verified
}

// Middleware verifies request credentials once and stores the verified
// service names in the request context for downstream authorization checks.
func (v *Verifiers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verified := v.VerifyRequest(r); len(verified) > 0 {
			r = r.WithContext(WithVerified(r.Context(), verified))
		}
		next.ServeHTTP(w, r)
	})
}
