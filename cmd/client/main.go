// Command client is a terminal chat client.
// Each stdin line "<user> <text>" sends text to that user, by username or id.
package main

import (
	"bufio"
	"bytes"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	p := printer{colours: config.Colours}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Jar: jar}

	self, err := authenticate(httpClient, config)
	if err != nil {
		return err
	}
	p.info(fmt.Sprintf("Signed in as %s (%s)", config.Username, self))

	serverURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return err
	}
	wsURL := *serverURL
	wsURL.Scheme = strings.Replace(serverURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), cookieHeader(jar, serverURL))
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	directory := newDirectory()
	done := make(chan struct{})
	go func() {
		defer close(done)
		read(conn, p, directory)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		to, text, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok || text == "" {
			p.warn("usage: <user> <text>")
			continue
		}
		req := domain.RelayRequest{Recipient: directory.resolve(to), Text: text}
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	<-done
	return scanner.Err()
}

func authenticate(client *http.Client, config Config) (string, error) {
	path := "/login"
	if config.Register {
		path = "/register"
	}
	body, err := json.Marshal(map[string]string{"username": config.Username, "password": config.Password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(config.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%s failed with status %d", path, resp.StatusCode)
	}
	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", err
	}
	return session.ID, nil
}

// cookieHeader forwards the session cookie to the WebSocket handshake.
func cookieHeader(jar http.CookieJar, u *url.URL) http.Header {
	header := http.Header{}
	for _, c := range jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	return header
}

func read(conn *websocket.Conn, p printer, directory *directory) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.warn(fmt.Sprintf("Disconnected: %v", err))
			return
		}

		var frame struct {
			event.MessageDelivered
			Online *[]event.OnlineUser `json:"online"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			p.warn(fmt.Sprintf("Unreadable frame: %s", data))
			continue
		}
		if frame.Online != nil {
			directory.update(*frame.Online)
			p.presence(directory.names())
			continue
		}
		p.message(directory.name(frame.Sender), frame.Text)
	}
}

// directory maps usernames of online users to their ids.
type directory struct {
	mu    sync.RWMutex
	users []event.OnlineUser
}

func newDirectory() *directory {
	return &directory{}
}

func (d *directory) update(users []event.OnlineUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = users
}

func (d *directory) resolve(nameOrID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Username == nameOrID {
			return u.UserID
		}
	}
	return nameOrID
}

func (d *directory) name(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.UserID == id {
			return u.Username
		}
	}
	return id
}

func (d *directory) names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.users))
	for _, u := range d.users {
		names = append(names, u.Username)
	}
	return names
}

type printer struct {
	colours bool
}

func (p printer) render(c color.Color, s string) string {
	if !p.colours {
		return s
	}
	return color.New(c).Render(s)
}

func (p printer) info(s string) {
	fmt.Println(p.render(color.FgGreen, s))
}

func (p printer) warn(s string) {
	fmt.Println(p.render(color.FgYellow, s))
}

func (p printer) presence(names []string) {
	fmt.Println(p.render(color.FgCyan, "online: "+strings.Join(names, ", ")))
}

func (p printer) message(from, text string) {
	fmt.Printf("%s %s\n", p.render(color.FgMagenta, from+":"), text)
}
