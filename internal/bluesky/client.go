package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

const (
	defaultAppViewURL = "https://api.bsky.app"
	defaultProfileURL = "https://public.api.bsky.app"
	defaultBlobHost   = "https://bsky.social"
	maxErrorBody      = 512
)

// Options configures a Client. Zero values select the public Bluesky
// endpoints with no relay.
type Options struct {
	// Relay is a pass-through proxy prefix. Upstream URLs are appended to it
	// verbatim, e.g. "https://proxy.example.com/" + "https://api.bsky.app/...".
	Relay string

	// AppViewURL serves app.bsky.feed.getPostThread.
	AppViewURL string

	// ProfileURL serves app.bsky.actor.getProfile.
	ProfileURL string

	// BlobHost serves com.atproto.sync.getBlob for video embeds.
	BlobHost string

	Timeout time.Duration
}

// Client is a read-only Bluesky AppView client that resolves post URLs and
// fetches posts and threads.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Bluesky API client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.AppViewURL == "" {
		opts.AppViewURL = defaultAppViewURL
	}
	if opts.ProfileURL == "" {
		opts.ProfileURL = defaultProfileURL
	}
	if opts.BlobHost == "" {
		opts.BlobHost = defaultBlobHost
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.AppViewURL = strings.TrimRight(opts.AppViewURL, "/")
	opts.ProfileURL = strings.TrimRight(opts.ProfileURL, "/")
	opts.BlobHost = strings.TrimRight(opts.BlobHost, "/")

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// Resolve turns a post URL into a PostRef. bsky.app links need their handle
// resolved to a DID, which costs one getProfile call every time.
func (c *Client) Resolve(ctx context.Context, rawURL string) (domain.PostRef, error) {
	parsed, err := ParsePostURL(rawURL)
	if err != nil {
		return domain.PostRef{}, err
	}
	if parsed.Handle == "" {
		return parsed.Ref, nil
	}

	did, err := c.ResolveHandle(ctx, parsed.Handle)
	if err != nil {
		return domain.PostRef{}, err
	}
	parsed.Ref.Repo = did
	return parsed.Ref, nil
}

// ResolveHandle looks up the DID of a handle via app.bsky.actor.getProfile.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	q := url.Values{}
	q.Set("actor", handle)

	var profile profileView
	if err := c.get(ctx, c.opts.ProfileURL+"/xrpc/app.bsky.actor.getProfile?"+q.Encode(), &profile); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrHandleResolutionFailed, handle, err)
	}
	if profile.DID == "" {
		return "", fmt.Errorf("%w: %s: profile has no did", domain.ErrHandleResolutionFailed, handle)
	}

	c.logger.Debug("resolved handle", "handle", handle, "did", profile.DID)
	return profile.DID, nil
}

// FetchPost retrieves a single post via getPostThread with no replies.
func (c *Client) FetchPost(ctx context.Context, ref domain.PostRef) (*domain.PostRecord, error) {
	resp, err := c.getPostThread(ctx, ref, 0)
	if err != nil {
		return nil, err
	}
	if resp.Thread == nil || resp.Thread.Post == nil {
		return nil, fmt.Errorf("%w: thread has no post", domain.ErrMalformedResponse)
	}
	return c.toPostRecord(resp.Thread.Post)
}

// FetchThread retrieves the reply tree rooted at ref, bounded by depth.
// Replies that are not visible posts (deleted, blocked) are dropped.
func (c *Client) FetchThread(ctx context.Context, ref domain.PostRef, depth int) (*domain.ThreadNode, error) {
	resp, err := c.getPostThread(ctx, ref, depth)
	if err != nil {
		return nil, err
	}
	if resp.Thread == nil || resp.Thread.Post == nil {
		return nil, domain.ErrEmptyThread
	}
	return c.toThreadNode(resp.Thread)
}

func (c *Client) getPostThread(ctx context.Context, ref domain.PostRef, depth int) (*threadResponse, error) {
	q := url.Values{}
	q.Set("depth", strconv.Itoa(depth))
	q.Set("uri", ref.URI())

	var resp threadResponse
	if err := c.get(ctx, c.opts.AppViewURL+"/xrpc/app.bsky.feed.getPostThread?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) toThreadNode(t *threadViewPost) (*domain.ThreadNode, error) {
	post, err := c.toPostRecord(t.Post)
	if err != nil {
		return nil, err
	}
	replies, err := c.toReplies(post.Author.DID, t.Replies)
	if err != nil {
		return nil, err
	}
	return &domain.ThreadNode{Post: post, Replies: replies}, nil
}

// toReplies converts the replies below a node. Only posts by rootDID are
// rendered, so an unreadable reply by anyone else keeps its place in the
// tree with a nil Post instead of failing the thread.
func (c *Client) toReplies(rootDID string, replies []*threadViewPost) ([]*domain.ThreadNode, error) {
	var nodes []*domain.ThreadNode
	for _, reply := range replies {
		if reply == nil || reply.Post == nil {
			continue
		}
		children, err := c.toReplies(rootDID, reply.Replies)
		if err != nil {
			return nil, err
		}
		node := &domain.ThreadNode{Replies: children}

		post, err := c.toPostRecord(reply.Post)
		switch {
		case err == nil:
			node.Post = post
		case reply.Post.Author.DID == rootDID:
			return nil, err
		default:
			c.logger.Debug("skipping unreadable reply", "uri", reply.Post.URI, "did", reply.Post.Author.DID, "error", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (c *Client) toPostRecord(p *postView) (*domain.PostRecord, error) {
	if p.URI == "" || p.Author.DID == "" || p.Author.Handle == "" {
		return nil, fmt.Errorf("%w: post is missing uri or author", domain.ErrMalformedResponse)
	}
	if p.Record.Text == nil {
		return nil, fmt.Errorf("%w: post %s has no record.text", domain.ErrMalformedResponse, p.URI)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, p.Record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: post %s: invalid createdAt %q", domain.ErrMalformedResponse, p.URI, p.Record.CreatedAt)
	}

	return &domain.PostRecord{
		URI:       p.URI,
		CID:       p.CID,
		Text:      *p.Record.Text,
		CreatedAt: createdAt,
		Author: domain.Author{
			DID:         p.Author.DID,
			Handle:      p.Author.Handle,
			DisplayName: p.Author.DisplayName,
		},
		Embed: c.toEmbed(p.Author.DID, p.Embed),
	}, nil
}

func (c *Client) toEmbed(authorDID string, e *embedView) domain.Embed {
	if e == nil {
		return nil
	}

	switch e.Type {
	case embedImagesView:
		images := make([]domain.Image, 0, len(e.Images))
		for _, img := range e.Images {
			images = append(images, domain.Image{FullsizeURL: img.Fullsize, Alt: img.Alt})
		}
		return &domain.ImagesEmbed{Images: images}

	case embedVideoView:
		return &domain.VideoEmbed{CID: e.CID, BlobURL: c.BlobURL(authorDID, e.CID)}

	default:
		return &domain.UnknownEmbed{Type: e.Type}
	}
}

// BlobURL returns the com.atproto.sync.getBlob address of a blob.
func (c *Client) BlobURL(did, cid string) string {
	q := url.Values{}
	q.Set("did", did)
	q.Set("cid", cid)
	return c.opts.BlobHost + "/xrpc/com.atproto.sync.getBlob?" + q.Encode()
}

// Relayed prefixes target with the configured relay, if any.
func Relayed(relay, target string) string {
	if relay == "" {
		return target
	}
	if !strings.HasSuffix(relay, "/") {
		relay += "/"
	}
	return relay + target
}

func (c *Client) get(ctx context.Context, target string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Relayed(c.opts.Relay, target), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("api request", "url", target)

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
		body := string(respBody)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &domain.RemoteFetchError{Status: resp.StatusCode, Body: body}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	return nil
}
