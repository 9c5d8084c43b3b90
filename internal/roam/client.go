// Package roam is a host backed by the Roam Research backend API.
package roam

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

const (
	defaultAPIURL = "https://api.roamresearch.com"
	uidAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	uidLength     = 9
)

const blockStringQuery = `[:find ?s .
 :in $ ?uid
 :where
   [?e :block/uid ?uid]
   [?e :block/string ?s]]`

const pageRefsQuery = `[:find ?uid ?s
 :in $ ?title
 :where
   [?p :node/title ?title]
   [?b :block/refs ?p]
   [?b :block/uid ?uid]
   [?b :block/string ?s]]`

// Client implements domain.Host against a single Roam graph. Roam offers
// no settings storage to API clients, so settings are fixed at construction.
type Client struct {
	apiURL     string
	graph      string
	token      string
	settings   domain.Settings
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Roam client. apiURL may be empty.
func NewClient(apiURL, graph, token string, settings domain.Settings, logger *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		graph:    graph,
		token:    token,
		settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// BlockString returns the text of a block.
func (c *Client) BlockString(ctx context.Context, uid string) (string, error) {
	var resp struct {
		Result *string `json:"result"`
	}
	if err := c.post(ctx, "q", queryRequest{Query: blockStringQuery, Args: []any{uid}}, &resp); err != nil {
		return "", fmt.Errorf("query block %s: %w", uid, err)
	}
	if resp.Result == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrBlockNotFound, uid)
	}
	return *resp.Result, nil
}

// TaggedBlocks returns the blocks referencing the page titled tag.
func (c *Client) TaggedBlocks(ctx context.Context, tag string) ([]domain.BatchItem, error) {
	var resp struct {
		Result [][2]string `json:"result"`
	}
	if err := c.post(ctx, "q", queryRequest{Query: pageRefsQuery, Args: []any{tag}}, &resp); err != nil {
		return nil, fmt.Errorf("query refs of %q: %w", tag, err)
	}

	items := make([]domain.BatchItem, 0, len(resp.Result))
	for _, row := range resp.Result {
		items = append(items, domain.BatchItem{UID: row[0], Text: row[1]})
	}
	return items, nil
}

// UpdateBlock replaces a block's text.
func (c *Client) UpdateBlock(ctx context.Context, uid, text string) error {
	action := writeAction{
		Action: "update-block",
		Block:  &blockSpec{UID: uid, String: text},
	}
	if err := c.post(ctx, "write", action, nil); err != nil {
		return &domain.HostWriteError{Op: "update", UID: uid, Err: err}
	}
	return nil
}

// CreateBlock creates a child block. Roam does not report generated UIDs, so
// one is always assigned here.
func (c *Client) CreateBlock(ctx context.Context, parentUID string, order int, text, uid string) (string, error) {
	if uid == "" {
		uid = c.NewUID()
	}

	var ord any = order
	if order < 0 {
		ord = "last"
	}
	action := writeAction{
		Action:   "create-block",
		Location: &location{ParentUID: parentUID, Order: ord},
		Block:    &blockSpec{UID: uid, String: text},
	}
	if err := c.post(ctx, "write", action, nil); err != nil {
		return "", &domain.HostWriteError{Op: "create", UID: parentUID, Err: err}
	}
	return uid, nil
}

// Settings returns the settings given at construction.
func (c *Client) Settings(context.Context) (domain.Settings, error) {
	return c.settings, nil
}

// NewUID returns a random 9 character Roam block UID.
func (c *Client) NewUID() string {
	buf := make([]byte, uidLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = uidAlphabet[int(b)%len(uidAlphabet)]
	}
	return string(buf)
}

// DailyPageUID returns the UID Roam gives the daily note page of t.
func DailyPageUID(t time.Time) string {
	return t.Format("01-02-2006")
}

func (c *Client) post(ctx context.Context, endpoint string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	target := fmt.Sprintf("%s/api/graph/%s/%s", c.apiURL, c.graph, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	c.logger.Debug("roam request", "endpoint", endpoint, "status", resp.StatusCode)
	return nil
}

type queryRequest struct {
	Query string `json:"query"`
	Args  []any  `json:"args"`
}

type writeAction struct {
	Action   string     `json:"action"`
	Location *location  `json:"location,omitempty"`
	Block    *blockSpec `json:"block,omitempty"`
}

type location struct {
	ParentUID string `json:"parent-uid"`
	Order     any    `json:"order"`
}

type blockSpec struct {
	UID    string `json:"uid,omitempty"`
	String string `json:"string"`
}
