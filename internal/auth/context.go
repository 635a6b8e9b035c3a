// ABOUTME: Request context plumbing for verified auth service names
// ABOUTME: Provides WithVerified/Verified for propagating results via context

package auth

import (
	"context"
)

// verifiedKey is the key type for storing verified service names in a context.
type verifiedKey struct{}

// WithVerified returns a new context carrying the verified auth service names.
func WithVerified(ctx context.Context, services []string) context.Context {
	return context.WithValue(ctx, verifiedKey{}, services)
}

// Verified retrieves the auth service names verified for this request,
// returning nil when none were.
func Verified(ctx context.Context) []string {
	val := ctx.Value(verifiedKey{})
	if val == nil {
		return nil
	}
	services, ok := val.([]string)
	if !ok {
		return nil
	}
	return services
}
