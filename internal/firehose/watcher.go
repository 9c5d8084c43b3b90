// Package firehose follows accounts on the Jetstream firehose and hands each
// of their new top-level posts to a handler.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

const (
	cursorServiceName  = "jetstream"
	cursorSaveInterval = 5 * time.Second
	reconnectDelay     = 5 * time.Second
)

// CursorStore persists the last processed event time so a restart resumes
// where it left off.
type CursorStore interface {
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// PostHandler receives new posts by followed accounts.
type PostHandler interface {
	HandlePost(ctx context.Context, did, rkey string) error
}

// Watcher connects to Jetstream and dispatches posts by the followed DIDs.
type Watcher struct {
	url     string
	dids    []string
	handler PostHandler
	cursors CursorStore
	logger  *slog.Logger
}

// NewWatcher creates a Watcher. cursors may be nil, in which case every
// connection starts from live events.
func NewWatcher(firehoseURL string, dids []string, handler PostHandler, cursors CursorStore, logger *slog.Logger) *Watcher {
	return &Watcher{
		url:     firehoseURL,
		dids:    dids,
		handler: handler,
		cursors: cursors,
		logger:  logger,
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. It reconnects on transient errors.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.dids) == 0 {
		return fmt.Errorf("no accounts to follow")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.subscribe(ctx); err != nil {
				w.logger.Error("firehose connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (w *Watcher) buildURL(cursor int64) string {
	u, _ := url.Parse(w.url)
	q := u.Query()
	q.Add("wantedCollections", domain.PostCollection)
	for _, did := range w.dids {
		q.Add("wantedDids", did)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (w *Watcher) loadCursor(ctx context.Context) int64 {
	if w.cursors == nil {
		return 0
	}
	cursor, err := w.cursors.GetCursor(ctx, cursorServiceName)
	if err != nil {
		w.logger.Warn("failed to load cursor, starting from live", "error", err)
		return 0
	}
	return cursor
}

func (w *Watcher) saveCursor(ctx context.Context, cursor int64) bool {
	if w.cursors == nil || cursor == 0 {
		return true
	}
	if err := w.cursors.UpdateCursor(ctx, cursorServiceName, cursor); err != nil {
		w.logger.Error("failed to save cursor", "error", err)
		return false
	}
	return true
}

func (w *Watcher) subscribe(ctx context.Context) error {
	wsURL := w.buildURL(w.loadCursor(ctx))
	w.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.logger.Info("connected to firehose", "following", len(w.dids))

	lastCursorSave := time.Now()
	var latestCursor int64
	defer func() { w.saveCursor(context.WithoutCancel(ctx), latestCursor) }()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			w.logger.Error("failed to parse event", "error", err)
			continue
		}
		latestCursor = event.TimeUS

		if err := w.handleEvent(ctx, event); err != nil {
			w.logger.Error("failed to handle post", "did", event.DID, "error", err)
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval && w.saveCursor(ctx, latestCursor) {
			lastCursorSave = time.Now()
		}
	}
}

// handleEvent dispatches newly created top-level posts. Replies, edits and
// deletes are ignored.
func (w *Watcher) handleEvent(ctx context.Context, event *jetstreamEvent) error {
	if event.Kind != "commit" || event.Commit == nil {
		return nil
	}
	commit := event.Commit
	if commit.Collection != domain.PostCollection || commit.Operation != "create" {
		return nil
	}
	if commit.Record == nil || commit.Record.Reply != nil {
		return nil
	}

	w.logger.Info("new post", "did", event.DID, "rkey", commit.RKey, "text_preview", truncate(commit.Record.Text, 100))
	return w.handler.HandlePost(ctx, event.DID, commit.RKey)
}

// truncate returns at most n bytes of s, cut on a rune boundary, appending
// "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func parseEvent(data []byte) (*jetstreamEvent, error) {
	var event jetstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Commit != nil && event.Commit.Collection != domain.PostCollection {
		event.Commit.Record = nil
	}
	return &event, nil
}
