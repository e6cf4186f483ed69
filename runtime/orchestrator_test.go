package runtime

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	repo         *mocks.MockIMessageRepository
	tokens       *auth.TokenManager
}

func newOrchestratorFixture(t *testing.T, pingInterval, deathTimeout time.Duration) orchestratorFixture {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIMessageRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	binder := auth.NewBinder(tokens, auth.DefaultCookieName, slog.Default())
	o := NewOrchestrator(slog.Default(), NewRegistry(), binder, repo, pingInterval, deathTimeout)
	t.Cleanup(o.Shutdown)
	return orchestratorFixture{orchestrator: o, repo: repo, tokens: tokens}
}

// header builds handshake headers carrying a token for identity.
func (f orchestratorFixture) header(t *testing.T, identity domain.Identity) http.Header {
	token, err := f.tokens.GenerateToken(identity)
	require.NoError(t, err)
	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: auth.DefaultCookieName, Value: token}).String())
	return header
}

func onlineUsers(identities ...domain.Identity) event.PresenceUpdate {
	update := event.PresenceUpdate{Online: []event.OnlineUser{}}
	for _, i := range identities {
		update.Online = append(update.Online, event.OnlineUser{UserID: i.ID, Username: i.Username})
	}
	return update
}

func TestOrchestrator_Connect_BindsAndBroadcasts(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	// Given alice then bob connecting with valid tokens
	connA, connB := newFakeConn("a"), newFakeConn("b")
	a := f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	f.orchestrator.Connect(ctx, connB, f.header(t, bob))

	// Then both are bound and both see the full list
	identity, ok := a.Identity()
	req.True(ok)
	req.Equal(alice, identity)

	for _, conn := range []*fakeConn{connA, connB} {
		update, ok := conn.lastPresence()
		req.True(ok)
		req.Equal(onlineUsers(alice, bob), update)
	}
}

func TestOrchestrator_Connect_WithoutTokenStaysUnbound(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	connA, anonymous, forged := newFakeConn("a"), newFakeConn("x"), newFakeConn("y")
	f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	c := f.orchestrator.Connect(ctx, anonymous, http.Header{})

	badHeader := http.Header{}
	badHeader.Add("Cookie", "token=not-a-jwt")
	f.orchestrator.Connect(ctx, forged, badHeader)

	// Then unbound connections stay registered and still get presence updates
	_, bound := c.Identity()
	req.False(bound)
	req.Equal(3, f.orchestrator.Registry().Len())
	update, ok := anonymous.lastPresence()
	req.True(ok)
	req.Equal(onlineUsers(alice), update)

	// And they cannot send
	f.repo.EXPECT().CreateMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	err := f.orchestrator.HandleMessage(ctx, c, []byte(`{"recipient":"a","text":"hi"}`))
	req.ErrorIs(err, errors.ErrUnboundSender)
	req.Empty(connA.messages())
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	connA, connB := newFakeConn("a"), newFakeConn("b")
	a := f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	f.orchestrator.Connect(ctx, connB, f.header(t, bob))

	f.repo.EXPECT().
		CreateMessage(gomock.Any(), "a", "b", "hi", gomock.Any()).
		DoAndReturn(storedMessage).
		Times(1)

	// When alice writes to bob
	err := f.orchestrator.HandleMessage(ctx, a, []byte(`{"recipient":"b","text":"hi"}`))

	// Then bob gets exactly that message and alice gets no echo
	req.NoError(err)
	delivered := connB.messages()
	req.Len(delivered, 1)
	req.Equal("a", delivered[0].Sender)
	req.Equal("b", delivered[0].Recipient)
	req.Equal("hi", delivered[0].Text)
	req.NotEmpty(delivered[0].ID)
	req.Empty(connA.messages())

	// When alice disconnects
	req.True(f.orchestrator.Disconnect(ctx, a.ID))

	// Then bob sees only himself
	update, ok := connB.lastPresence()
	req.True(ok)
	req.Equal(onlineUsers(bob), update)
	req.True(connA.isClosed())
}

func TestOrchestrator_HandleMessage_MissingRecipient(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	connA, connB := newFakeConn("a"), newFakeConn("b")
	a := f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	f.orchestrator.Connect(ctx, connB, f.header(t, bob))

	// Then nothing is stored
	f.repo.EXPECT().CreateMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := f.orchestrator.HandleMessage(ctx, a, []byte(`{"text":"hi"}`))
	req.ErrorIs(err, errors.ErrInvalidRelayRequest)

	err = f.orchestrator.HandleMessage(ctx, a, []byte(`not json`))
	req.ErrorIs(err, errors.ErrInvalidRelayRequest)

	// And nothing is delivered
	req.Empty(connA.messages())
	req.Empty(connB.messages())
}

func TestOrchestrator_Disconnect_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	connA, connB := newFakeConn("a"), newFakeConn("b")
	a := f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	f.orchestrator.Connect(ctx, connB, f.header(t, bob))
	before := len(connB.presences())

	// When the same connection is evicted twice
	req.True(f.orchestrator.Disconnect(ctx, a.ID))
	req.False(f.orchestrator.Disconnect(ctx, a.ID))

	// Then a single presence update went out
	req.Len(connB.presences(), before+1)
	req.Equal(1, f.orchestrator.Registry().Len())
}

func TestOrchestrator_SilentPeerIsEvicted(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, 20*time.Millisecond, 10*time.Millisecond)
	ctx := context.Background()

	// Given alice whose client never answers, and bob who always does
	connA, connB := newFakeConn("a"), newFakeConn("b")
	connB.onPing = func() {
		for _, c := range f.orchestrator.Registry().ConnectionsFor(bob.ID) {
			c.Pong()
		}
	}
	a := f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	b := f.orchestrator.Connect(ctx, connB, f.header(t, bob))

	// Then alice is evicted within one ping interval plus the death timeout
	req.Eventually(func() bool {
		_, ok := f.orchestrator.Registry().Get(a.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
	req.True(connA.isClosed())

	// And bob is told, and stays online
	req.Eventually(func() bool {
		update, ok := connB.lastPresence()
		return ok && len(update.Online) == 1 && update.Online[0].UserID == bob.ID
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	_, ok := f.orchestrator.Registry().Get(b.ID)
	req.True(ok)
	req.Greater(connB.pingCount(), 1)
}

func TestOrchestrator_Shutdown(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, time.Hour, time.Hour)
	ctx := context.Background()

	connA, connB := newFakeConn("a"), newFakeConn("b")
	f.orchestrator.Connect(ctx, connA, f.header(t, alice))
	f.orchestrator.Connect(ctx, connB, http.Header{})

	f.orchestrator.Shutdown()

	req.Zero(f.orchestrator.Registry().Len())
	req.True(connA.isClosed())
	req.True(connB.isClosed())
}

func TestOrchestrator_ConnectAfterShutdownIsClosed(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, 10*time.Millisecond, 10*time.Millisecond)
	ctx := context.Background()

	// Given an orchestrator already shut down
	f.orchestrator.Shutdown()

	// When a late session arrives
	late := newFakeConn("late")
	c := f.orchestrator.Connect(ctx, late, f.header(t, alice))

	// Then it is closed, never registered, never probed nor told about presence
	req.True(late.isClosed())
	req.Zero(f.orchestrator.Registry().Len())
	_, bound := c.Identity()
	req.False(bound)
	time.Sleep(50 * time.Millisecond)
	req.Zero(late.pingCount())
	req.Empty(late.presences())
}
