package runner

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// CallerClaims identifies the caller on whose behalf an op is invoked, for
// providers that require an authenticated caller identity. The external
// secret store supplies the signing key out of band; this package never
// stores or mints secrets itself.
type CallerClaims struct {
	jwt.RegisteredClaims
	Tenant string `json:"tenant,omitempty"`
	Team   string `json:"team,omitempty"`
}

// CallerAuthError wraps a bearer-token verification failure.
type CallerAuthError struct {
	Err error
}

func (e *CallerAuthError) Error() string {
	return fmt.Sprintf("runner: caller authentication failed: %v", e.Err)
}

func (e *CallerAuthError) Unwrap() error { return e.Err }

// VerifyCallerToken validates an HS256-signed bearer token against secret
// and returns its claims. Invocations with no required caller identity
// simply never call this: it is opt-in per op, not a blanket gate.
func VerifyCallerToken(tokenString string, secret []byte) (*CallerClaims, error) {
	var claims CallerClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, &CallerAuthError{Err: err}
	}
	if !token.Valid {
		return nil, &CallerAuthError{Err: fmt.Errorf("token not valid")}
	}
	return &claims, nil
}
