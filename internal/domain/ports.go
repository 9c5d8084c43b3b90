package domain

import (
	"context"
	"time"
)

// OrderLast appends a created block after its existing siblings.
const OrderLast = -1

// PostSource resolves post URLs and fetches posts from the remote API.
type PostSource interface {
	// Resolve turns a bsky.app post URL or an at:// URI into a PostRef. Web
	// URLs cost one handle lookup per call.
	Resolve(ctx context.Context, rawURL string) (PostRef, error)

	// FetchPost retrieves a single post.
	FetchPost(ctx context.Context, ref PostRef) (*PostRecord, error)

	// FetchThread retrieves the reply tree rooted at ref, at most depth
	// levels deep.
	FetchThread(ctx context.Context, ref PostRef, depth int) (*ThreadNode, error)
}

// MediaRelocator copies remote media into the destination store. It reports
// ok=false instead of an error; callers omit the item and carry on.
type MediaRelocator interface {
	Relocate(ctx context.Context, sourceURL string) (ref string, ok bool)
}

// BlockReader reads block text from the host graph.
type BlockReader interface {
	// BlockString returns the text of the block. Returns ErrBlockNotFound for
	// an unknown UID.
	BlockString(ctx context.Context, uid string) (string, error)
}

// BlockWriter mutates the host graph. Calls are independent; a failure
// part-way through an extraction leaves earlier writes in place.
type BlockWriter interface {
	// UpdateBlock replaces the text of an existing block.
	UpdateBlock(ctx context.Context, uid, text string) error

	// CreateBlock adds a child under parentUID at order (OrderLast appends).
	// When uid is empty the host assigns one. Returns the UID of the new block.
	CreateBlock(ctx context.Context, parentUID string, order int, text, uid string) (string, error)
}

// TagQuery finds blocks referencing a tag page.
type TagQuery interface {
	TaggedBlocks(ctx context.Context, tag string) ([]BatchItem, error)
}

// SettingsSource reads the plugin settings. Implementations must read the
// current values on every call.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// Host is the notes application the extractor writes into.
type Host interface {
	BlockReader
	BlockWriter
	TagQuery
	SettingsSource
}

// Indicator shows and hides a pending marker on a block while it is being
// extracted.
type Indicator interface {
	Show(ctx context.Context, uid string)
	Hide(ctx context.Context, uid string)
}

// UIDGenerator is implemented by hosts with their own block UID format.
type UIDGenerator interface {
	NewUID() string
}

// DateFormatter renders a timestamp as the host's daily page title.
type DateFormatter func(t time.Time) string

// RetryPolicy runs fn, possibly more than once. It is only applied around
// whole batch items, never inside a single extraction.
type RetryPolicy interface {
	Do(ctx context.Context, fn func() error) error
}

// Block is a node of the host graph with its children in order.
type Block struct {
	UID       string
	ParentUID string
	Order     int
	String    string
	Pending   bool
	Children  []*Block
}

type nopIndicator struct{}

func (nopIndicator) Show(context.Context, string) {}
func (nopIndicator) Hide(context.Context, string) {}

type once struct{}

func (once) Do(_ context.Context, fn func() error) error { return fn() }
