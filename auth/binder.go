package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"
	"net/http"
)

// DefaultCookieName is the cookie set by /login and /register.
const DefaultCookieName = "token"

// Binder extracts the credential token from handshake headers and hands it
// to the verifier. Any failure yields an unbound connection.
type Binder struct {
	verifier   contract.TokenVerifier
	cookieName string
	log        *slog.Logger
}

func NewBinder(verifier contract.TokenVerifier, cookieName string, log *slog.Logger) Binder {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return Binder{verifier: verifier, cookieName: cookieName, log: log}
}

// Bind returns the verified identity, or false when the token is absent,
// empty or rejected.
func (b Binder) Bind(header http.Header) (domain.Identity, bool) {
	token, ok := TokenFromHeader(header, b.cookieName)
	if !ok {
		return domain.Identity{}, false
	}
	identity, err := b.verifier.Verify(token)
	if err != nil {
		b.log.Debug("Rejected credential token", "error", err)
		return domain.Identity{}, false
	}
	return identity, true
}

// TokenFromHeader looks for the named cookie among the Cookie headers.
func TokenFromHeader(header http.Header, cookieName string) (string, bool) {
	if header == nil {
		return "", false
	}
	req := http.Request{Header: header}
	cookie, err := req.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
