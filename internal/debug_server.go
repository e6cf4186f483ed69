package internal

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"embed"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Timestamp string
	ID        string
	Sender    string
	Recipient string
	Text      string
}

type StatsProvider func() map[string]any

type PageData struct {
	User  string
	Items []InspectRow
	Stats map[string]any
}

// DebugServer serves a read-only page listing stored messages and live
// connection stats. It is meant for a private port only.
type DebugServer struct {
	log           *slog.Logger
	db            *badger.DB
	addr          string
	statsProvider StatsProvider
	tmpl          *template.Template
}

func NewDebugServer(log *slog.Logger, db *badger.DB, addr string, statsProvider StatsProvider) *DebugServer {
	return &DebugServer{
		log:           log,
		db:            db,
		addr:          addr,
		statsProvider: statsProvider,
		tmpl:          template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
}

func (s *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", s.inspect)
	return mux
}

// Run serves until ctx ends.
func (s *DebugServer) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting debug server", "address", s.addr)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		User:  r.URL.Query().Get("user"),
		Stats: make(map[string]any),
	}
	if s.statsProvider != nil {
		data.Stats = s.statsProvider()
	}

	err := repositories.ScanMessages(s.db, func(key string, m domain.Message, err error) {
		if err != nil {
			data.Items = append(data.Items, InspectRow{Key: key, Text: "undecodable: " + err.Error()})
			return
		}
		if data.User != "" && m.Sender != data.User && m.Recipient != data.User {
			return
		}
		data.Items = append(data.Items, InspectRow{
			Key:       key,
			Timestamp: m.CreatedAt.Format("2006-01-02 15:04:05"),
			ID:        m.ID.String(),
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Text:      m.Text,
		})
	})
	if err != nil {
		s.log.Error("Failed to scan messages", "error", err)
		http.Error(w, "scan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.Debug("Failed to render inspect page", "error", err)
	}
}
