package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultThreadDepth bounds the reply tree requested for thread extraction.
const DefaultThreadDepth = 1000

// Option configures an Extractor.
type Option func(*Extractor)

// WithDateFormatter sets the function rendering {DATE}. Defaults to Roam
// daily page titles in UTC.
func WithDateFormatter(f DateFormatter) Option {
	return func(e *Extractor) { e.dateTitle = f }
}

// WithIndicator sets the pending marker shown while a block is extracted.
func WithIndicator(ind Indicator) Option {
	return func(e *Extractor) { e.indicator = ind }
}

// WithThreadDepth sets the maximum reply depth fetched for threads.
func WithThreadDepth(depth int) Option {
	return func(e *Extractor) {
		if depth > 0 {
			e.threadDepth = depth
		}
	}
}

// WithRetryPolicy wraps each batch item. Single extractions are never retried.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Extractor) { e.retry = p }
}

// WithStateHook registers a callback invoked on every state transition.
func WithStateHook(hook func(uid string, from, to State)) Option {
	return func(e *Extractor) { e.onState = hook }
}

// Extractor is the core service. It extracts posts and threads referenced
// by host blocks and writes the rendered result back into the host.
type Extractor struct {
	posts       PostSource
	media       MediaRelocator
	host        Host
	logger      *slog.Logger
	dateTitle   DateFormatter
	indicator   Indicator
	threadDepth int
	retry       RetryPolicy
	onState     func(uid string, from, to State)
}

// NewExtractor creates an Extractor.
func NewExtractor(posts PostSource, media MediaRelocator, host Host, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		posts:       posts,
		media:       media,
		host:        host,
		logger:      logger,
		dateTitle:   DateTitleIn(time.UTC),
		indicator:   nopIndicator{},
		threadDepth: DefaultThreadDepth,
		retry:       once{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractBlock reads the block's text and extracts the post it links to.
func (e *Extractor) ExtractBlock(ctx context.Context, uid string) error {
	text, err := e.host.BlockString(ctx, uid)
	if err != nil {
		return fmt.Errorf("read block %s: %w", uid, err)
	}
	return e.ExtractPost(ctx, uid, text)
}

// ExtractPost replaces the block uid with the rendered post linked from
// text. Media children are appended beneath the block.
func (e *Extractor) ExtractPost(ctx context.Context, uid, text string) error {
	settings, err := e.host.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	x := e.begin(ctx, uid)
	defer e.indicator.Hide(context.WithoutCancel(ctx), uid)

	e.logger.Debug("extracting post", "uid", uid, "template", settings.PostTemplate, "image_location", settings.ImageLocation)

	rawURL, ok := FindPostURL(text)
	if !ok {
		return x.fail(fmt.Errorf("block %s: %w", uid, ErrInvalidURLFormat))
	}

	ref, err := e.posts.Resolve(ctx, rawURL)
	if err != nil {
		return x.fail(fmt.Errorf("resolve %s: %w", rawURL, err))
	}

	post, err := e.posts.FetchPost(ctx, ref)
	if err != nil {
		return x.fail(fmt.Errorf("fetch post %s: %w", ref.URI(), err))
	}

	rendered, children := e.render(ctx, x, post, rawURL, settings)

	x.to(StateWriting)
	if err := e.write(ctx, uid, rendered, children); err != nil {
		return x.fail(err)
	}

	x.to(StateDone)
	e.logger.Info("post extracted", "uid", uid, "uri", post.URI, "media_blocks", len(children))
	return nil
}

// ExtractThread replaces the block uid with the first post of the thread it
// links to and appends every later post by the same author as a child block.
func (e *Extractor) ExtractThread(ctx context.Context, uid string) error {
	settings, err := e.host.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	text, err := e.host.BlockString(ctx, uid)
	if err != nil {
		return fmt.Errorf("read block %s: %w", uid, err)
	}

	x := e.begin(ctx, uid)
	defer e.indicator.Hide(context.WithoutCancel(ctx), uid)

	rawURL, ok := FindPostURL(text)
	if !ok {
		return x.fail(fmt.Errorf("block %s: %w", uid, ErrNoURL))
	}

	ref, err := e.posts.Resolve(ctx, rawURL)
	if err != nil {
		return x.fail(fmt.Errorf("resolve %s: %w", rawURL, err))
	}

	root, err := e.posts.FetchThread(ctx, ref, e.threadDepth)
	if err != nil {
		return x.fail(fmt.Errorf("fetch thread %s: %w", ref.URI(), err))
	}

	posts := Flatten(root)
	if len(posts) == 0 {
		return x.fail(fmt.Errorf("thread %s: %w", ref.URI(), ErrEmptyThread))
	}
	e.logger.Debug("thread flattened", "uid", uid, "uri", ref.URI(), "posts", len(posts))

	for i, post := range posts {
		rendered, children := e.render(ctx, x, post, PostURL(post), settings)

		x.to(StateWriting)
		if i == 0 {
			if err := e.write(ctx, uid, rendered, children); err != nil {
				return x.fail(err)
			}
			continue
		}

		childUID, err := e.host.CreateBlock(ctx, uid, OrderLast, rendered, e.newUID())
		if err != nil {
			return x.fail(hostWriteError("create", uid, err))
		}
		if err := e.writeChildren(ctx, childUID, children); err != nil {
			return x.fail(err)
		}
	}

	x.to(StateDone)
	e.logger.Info("thread extracted", "uid", uid, "uri", ref.URI(), "posts", len(posts))
	return nil
}

// render resolves the template for one post. Media is relocated only when
// the post carries an embed.
func (e *Extractor) render(ctx context.Context, x *extraction, post *PostRecord, postURL string, settings Settings) (string, []string) {
	x.to(StateRendering)
	rc := NewRenderContext(post, postURL, e.dateTitle)

	var media placedMedia
	if post.Embed != nil {
		x.to(StateMediaResolving)
		media = e.placeMedia(ctx, post, settings.ImageLocation)
	}
	rc.Images = media.images

	return Render(settings.PostTemplate, rc), media.children
}

func (e *Extractor) write(ctx context.Context, uid, text string, children []string) error {
	if err := e.host.UpdateBlock(ctx, uid, text); err != nil {
		return hostWriteError("update", uid, err)
	}
	return e.writeChildren(ctx, uid, children)
}

func (e *Extractor) writeChildren(ctx context.Context, parentUID string, children []string) error {
	for _, child := range children {
		if _, err := e.host.CreateBlock(ctx, parentUID, OrderLast, child, ""); err != nil {
			return hostWriteError("create", parentUID, err)
		}
	}
	return nil
}

func (e *Extractor) newUID() string {
	if gen, ok := e.host.(UIDGenerator); ok {
		return gen.NewUID()
	}
	return uuid.NewString()
}

func hostWriteError(op, uid string, err error) error {
	var hwe *HostWriteError
	if errors.As(err, &hwe) {
		return err
	}
	return &HostWriteError{Op: op, UID: uid, Err: err}
}
