package websocket

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"arenakit/realtime"
	gorillaws "github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Options tunes the stream handler.
type Options struct {
	// Buffer is the per-connection event backlog.
	Buffer int
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(*http.Request) bool
	Logger      *slog.Logger
}

// Handler returns an http.Handler that upgrades to WebSocket and streams events from the hub.
// Clients may narrow the stream with ?topics=players_updated,chat_updated.
func Handler(hub *realtime.Hub) http.Handler {
	return HandlerWithOptions(hub, Options{})
}

func HandlerWithOptions(hub *realtime.Hub, opts Options) http.Handler {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: opts.CheckOrigin}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var names []string
		if raw := r.URL.Query().Get("topics"); raw != "" {
			names = strings.Split(raw, ",")
		}
		topics, err := realtime.ParseTopics(names)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(opts.Buffer, topics...)
		defer hub.Unsubscribe(id)
		log := opts.Logger.With("component", "ws", "subscriber", id)
		log.Debug("stream opened", "topics", names)

		// reader: handles pongs and notices the client going away
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					log.Debug("stream write failed", "error", err)
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				log.Debug("stream closed by client")
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}
