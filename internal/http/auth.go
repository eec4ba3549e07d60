package http

import (
	"crypto/rsa"
	"net"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/robertarktes/rail-booking/internal/domain"
)

var errUnauthenticated = errors.New("invalid bearer token")

// Authenticator resolves the caller's session identity from an RS256 bearer
// token. Requests without a token are anonymous.
type Authenticator struct {
	key *rsa.PublicKey
}

// NewAuthenticator parses a PEM encoded RSA public key. An empty key yields
// an authenticator that treats every caller as anonymous.
func NewAuthenticator(publicKeyPEM string) (*Authenticator, error) {
	if strings.TrimSpace(publicKeyPEM) == "" {
		return &Authenticator{}, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, "parse JWT public key")
	}
	return &Authenticator{key: key}, nil
}

func (a *Authenticator) Session(r *http.Request) (domain.Session, error) {
	s := domain.Session{IPAddress: clientIP(r)}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || a == nil || a.key == nil {
		return s, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return s, errors.Mark(errors.Wrap(err, "parse bearer token"), errUnauthenticated)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		if id, ok := claims["user_id"].(string); ok {
			sub = id
		}
	}
	if sub == "" {
		return s, errors.Mark(errors.New("token has no subject"), errUnauthenticated)
	}
	s.UserID = sub
	return s, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
