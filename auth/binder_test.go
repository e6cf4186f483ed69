package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func cookieHeader(values ...string) http.Header {
	header := http.Header{}
	for _, v := range values {
		header.Add("Cookie", v)
	}
	return header
}

func TestBinder_Bind(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	binder := NewBinder(verifier, "", slog.Default())
	alice := domain.Identity{ID: "a", Username: "alice"}

	// Given a verifier accepting the token found among other cookies
	verifier.EXPECT().Verify("good").Return(alice, nil)

	// When binding
	identity, ok := binder.Bind(cookieHeader("theme=dark; token=good"))

	// Then the verified identity comes back
	req.True(ok)
	req.Equal(alice, identity)
}

func TestBinder_Bind_Unbound(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	binder := NewBinder(verifier, DefaultCookieName, slog.Default())

	verifier.EXPECT().Verify("bad").Return(domain.Identity{}, errors.ErrInvalidToken)

	for name, header := range map[string]http.Header{
		"nil headers":    nil,
		"no cookie":      {},
		"other cookie":   cookieHeader("session=abc"),
		"empty token":    cookieHeader("token="),
		"rejected token": cookieHeader("token=bad"),
	} {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			identity, ok := binder.Bind(header)
			req.False(ok)
			req.True(identity.IsZero())
		})
	}
}

func TestBinder_CustomCookieName(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	binder := NewBinder(verifier, "jwt", slog.Default())

	verifier.EXPECT().Verify("abc").Return(domain.Identity{ID: "b", Username: "bob"}, nil)

	_, ok := binder.Bind(cookieHeader("token=ignored"))
	req.False(ok)

	identity, ok := binder.Bind(cookieHeader("jwt=abc"))
	req.True(ok)
	req.Equal("b", identity.ID)
}
