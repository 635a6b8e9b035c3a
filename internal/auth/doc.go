// Package auth verifies caller credentials against named auth services.
//
// # Auth Services
//
// Services are configured under authServices, each with a kind and the
// request slot its credential arrives in:
//
//	authServices:
//	  my-jwt:
//	    kind: jwt
//	    secret: ${JWT_SECRET}
//
// The only kind today is jwt: HS256 tokens verified with a shared secret,
// subject taken from the "sub" claim. By default the credential is read
// from the Authorization header with a Bearer scheme; header and scheme
// are configurable per service, and a custom header carries its raw value.
//
// # Verification Model
//
// Verification is additive, not gating. The HTTP middleware checks every
// configured service against each request and records the names of those
// that verified:
//
//	verified := auth.Verified(r.Context())
//
// A request with no valid credential still proceeds; whether it may invoke
// a given tool is decided later against the tool's authRequired list, which
// passes when any required service name appears in the verified set.
package auth
