package e2e

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/ws"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config Config

	db     *badger.DB
	server *httptest.Server
}

// SetupSuite loads the configuration and, unless a server URL is given,
// starts the whole stack on an ephemeral port.
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL != "" {
		return
	}

	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLogger(nil))
	s.Require().NoError(err)

	messages := repositories.NewMessageRepository(s.db, log, nil)
	users := repositories.NewUserRepository(s.db)
	tokens := auth.NewTokenManager("e2e-secret", time.Hour)
	orchestrator := runtime.NewOrchestrator(log, runtime.NewRegistry(),
		auth.NewBinder(tokens, auth.DefaultCookieName, log), messages,
		s.Config.PingInterval, s.Config.DeathTimeout)

	wsHandler := ws.NewHandler(log, orchestrator, ws.Options{
		SendBufferSize:    32,
		InboundBufferSize: 32,
		WriteTimeout:      time.Second,
	})
	server := rest.NewServer(log,
		services.NewAuthService(users, tokens),
		services.NewChatService(messages, users),
		tokens, wsHandler, rest.Options{ClientURL: "http://localhost", TokenDuration: time.Hour})

	s.server = httptest.NewServer(server.Routes())
	s.Config.ServerURL = s.server.URL
}

func (s *BaseChatSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Step prints a header and runs fn as a named subtest.
func (s *BaseChatSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	s.Run(name, fn)
}

// Client is one signed-in user with an open WebSocket.
type Client struct {
	ID       string
	Username string
	Cookie   *http.Cookie
	Conn     *websocket.Conn
}

// Frame is any frame the server pushes.
type Frame struct {
	event.MessageDelivered
	Online *[]event.OnlineUser `json:"online"`
}

// Register creates an account and returns its session cookie.
func (s *BaseChatSuite) Register(username, password string) *Client {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	s.Require().NoError(err)
	resp, err := http.Post(s.Config.ServerURL+"/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var session struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&session))

	client := &Client{ID: session.ID, Username: username}
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			client.Cookie = c
		}
	}
	s.Require().NotNil(client.Cookie, "register must set the token cookie")
	return client
}

// Connect opens the client's WebSocket with its cookie.
func (s *BaseChatSuite) Connect(client *Client) {
	header := http.Header{}
	header.Add("Cookie", client.Cookie.String())
	url := "ws" + strings.TrimPrefix(s.Config.ServerURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)
	client.Conn = conn
}

// Await reads frames until match accepts one.
func (s *BaseChatSuite) Await(client *Client, match func(Frame) bool) Frame {
	deadline := time.Now().Add(s.Config.ReadTimeout)
	for {
		s.Require().NoError(client.Conn.SetReadDeadline(deadline))
		_, data, err := client.Conn.ReadMessage()
		s.Require().NoError(err, "%s: no matching frame before deadline", client.Username)
		if s.Config.DebugFrames {
			s.T().Logf("%s <- %s", client.Username, data)
		}
		var f Frame
		s.Require().NoError(json.Unmarshal(data, &f))
		if match(f) {
			return f
		}
	}
}

// OnlineIs matches a presence update listing exactly the given users.
func OnlineIs(clients ...*Client) func(Frame) bool {
	return func(f Frame) bool {
		if f.Online == nil || len(*f.Online) != len(clients) {
			return false
		}
		for i, u := range *f.Online {
			if u.UserID != clients[i].ID {
				return false
			}
		}
		return true
	}
}
