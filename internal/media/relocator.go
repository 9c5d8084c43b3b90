// Package media copies remote post media into a destination store.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/bluesky-extract/internal/bluesky"
)

// DefaultMaxBytes caps the size of a single relocated item.
const DefaultMaxBytes = 100 << 20

// Store persists uploaded media and returns a reference to it.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Relocator downloads media through the relay and re-uploads it to a Store.
type Relocator struct {
	store      Store
	relay      string
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// NewRelocator creates a Relocator. relay may be empty.
func NewRelocator(store Store, relay string, timeout time.Duration, logger *slog.Logger) *Relocator {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Relocator{
		store:      store,
		relay:      relay,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   DefaultMaxBytes,
		logger:     logger,
	}
}

// Relocate copies sourceURL into the store. Images come back wrapped as
// markdown images, other kinds as the bare reference. Any failure is logged
// and reported as ok=false.
func (r *Relocator) Relocate(ctx context.Context, sourceURL string) (string, bool) {
	ref, err := r.relocate(ctx, sourceURL)
	if err != nil {
		r.logger.Warn("media relocation failed", "src", sourceURL, "error", err)
		return "", false
	}
	return ref, true
}

func (r *Relocator) relocate(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bluesky.Relayed(r.relay, sourceURL), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return "", fmt.Errorf("media exceeds %d bytes", r.maxBytes)
	}

	contentType := ContentType(resp.Header.Get("Content-Type"), data)
	key := uuid.NewString()[:8] + "-" + Filename(sourceURL, contentType)

	ref, err := r.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	r.logger.Debug("media relocated", "src", sourceURL, "ref", ref, "content_type", contentType, "bytes", len(data))

	if strings.HasPrefix(contentType, "image/") {
		return "![](" + ref + ")", nil
	}
	return ref, nil
}

// ContentType returns the media type declared in header, sniffing data when
// the header is missing or generic.
func ContentType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// Filename derives an object name from the source URL. getBlob URLs are
// named after their cid; CDN names like "bafk...@jpeg" become "bafk....jpeg".
func Filename(sourceURL, contentType string) string {
	name := ""
	if u, err := url.Parse(sourceURL); err == nil {
		if cid := u.Query().Get("cid"); cid != "" {
			name = cid
		} else {
			name = path.Base(u.Path)
		}
	}
	name = sanitize(strings.ReplaceAll(name, "@", "."))
	if name == "" || name == "." || name == "_" {
		name = "media"
	}

	if path.Ext(name) == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
