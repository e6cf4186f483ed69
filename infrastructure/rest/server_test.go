package rest

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const clientURL = "http://localhost:5173"

type restFixture struct {
	server   *httptest.Server
	messages repositories.MessageRepository
}

func newRestFixture(t *testing.T) restFixture {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	limit := 2
	messages := repositories.NewMessageRepository(db, slog.Default(), &limit)
	users := repositories.NewUserRepository(db)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s := NewServer(slog.Default(),
		services.NewAuthService(users, tokens),
		services.NewChatService(messages, users),
		tokens, wsHandler,
		Options{ClientURL: clientURL, TokenDuration: time.Hour})

	server := httptest.NewServer(s.Routes())
	t.Cleanup(server.Close)
	return restFixture{server: server, messages: messages}
}

func (f restFixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f restFixture) get(t *testing.T, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func tokenCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	t.Fatal("no token cookie set")
	return nil
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_Test(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	resp := f.get(t, "/test", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("test.ok", decode[string](t, resp))
}

func TestServer_RegisterLoginProfile(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	credentials := credentialsRequest{Username: "alice", Password: "ComplexPass123!"}

	// When registering
	resp := f.post(t, "/register", credentials)

	// Then the account is created and the cookie set
	req.Equal(http.StatusCreated, resp.StatusCode)
	registered := decode[sessionResponse](t, resp)
	req.NotEmpty(registered.ID)
	cookie := tokenCookie(t, resp)
	req.True(cookie.HttpOnly)

	// When registering again
	req.Equal(http.StatusConflict, f.post(t, "/register", credentials).StatusCode)

	// When logging in
	resp = f.post(t, "/login", credentials)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(registered.ID, decode[sessionResponse](t, resp).ID)

	// Then the cookie identifies the user
	resp = f.get(t, "/profile", tokenCookie(t, resp))
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(profileResponse{UserID: registered.ID, Username: "alice"}, decode[profileResponse](t, resp))
}

func TestServer_RejectsBadCredentials(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	req.Equal(http.StatusBadRequest, f.post(t, "/register", credentialsRequest{Username: "alice", Password: "weak"}).StatusCode)

	f.post(t, "/register", credentialsRequest{Username: "alice", Password: "ComplexPass123!"})
	req.Equal(http.StatusUnauthorized, f.post(t, "/login", credentialsRequest{Username: "alice", Password: "WrongPass123!"}).StatusCode)
	req.Equal(http.StatusUnauthorized, f.post(t, "/login", credentialsRequest{Username: "ghost", Password: "ComplexPass123!"}).StatusCode)
}

func TestServer_ProtectedRoutesNeedToken(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	forged := &http.Cookie{Name: auth.DefaultCookieName, Value: "forged"}

	req.Equal(http.StatusUnauthorized, f.get(t, "/profile", nil).StatusCode)
	req.Equal(http.StatusUnauthorized, f.get(t, "/profile", forged).StatusCode)
	req.Equal(http.StatusUnauthorized, f.get(t, "/messages/someone", nil).StatusCode)
}

func TestServer_PeopleAndMessages(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	resp := f.post(t, "/register", credentialsRequest{Username: "alice", Password: "ComplexPass123!"})
	aliceID := decode[sessionResponse](t, resp).ID
	cookie := tokenCookie(t, resp)
	bobID := decode[sessionResponse](t, f.post(t, "/register", credentialsRequest{Username: "bob", Password: "ComplexPass123!"})).ID

	people := decode[[]profileResponse](t, f.get(t, "/people", nil))
	req.ElementsMatch([]profileResponse{{UserID: aliceID, Username: "alice"}, {UserID: bobID, Username: "bob"}}, people)

	// Given three messages, with pages of two
	now := time.Now()
	for i, text := range []string{"one", "two", "three"} {
		sender, recipient := aliceID, bobID
		if i == 1 {
			sender, recipient = bobID, aliceID
		}
		_, err := f.messages.CreateMessage(context.Background(), sender, recipient, text, now.Add(time.Duration(i)*time.Second))
		req.NoError(err)
	}

	// When reading the first page
	resp = f.get(t, "/messages/"+bobID, cookie)
	req.Equal(http.StatusOK, resp.StatusCode)
	page := decode[[]messageResponse](t, resp)
	req.Len(page, 2)
	req.Equal("one", page[0].Text)
	req.Equal("two", page[1].Text)
	next := resp.Header.Get(NextCursorHeader)
	req.NotEmpty(next)

	// Then the cursor leads to the rest
	r, err := http.NewRequest(http.MethodGet, f.server.URL+"/messages/"+bobID, nil)
	req.NoError(err)
	q := r.URL.Query()
	q.Set("cursor", next)
	r.URL.RawQuery = q.Encode()
	r.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(r)
	req.NoError(err)
	defer resp.Body.Close()
	page = decode[[]messageResponse](t, resp)
	req.Len(page, 1)
	req.Equal("three", page[0].Text)
}

func TestServer_Logout(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	resp := f.post(t, "/logout", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	cookie := tokenCookie(t, resp)
	req.Empty(cookie.Value)
	req.Negative(cookie.MaxAge)
}

func TestServer_CORSAllowsClientWithCredentials(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	r, err := http.NewRequest(http.MethodOptions, f.server.URL+"/login", nil)
	req.NoError(err)
	r.Header.Set("Origin", clientURL)
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(r)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(clientURL, resp.Header.Get("Access-Control-Allow-Origin"))
	req.Equal("true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestServer_WebSocketRouteIsMounted(t *testing.T) {
	f := newRestFixture(t)
	require.Equal(t, http.StatusTeapot, f.get(t, "/ws", nil).StatusCode)
}
