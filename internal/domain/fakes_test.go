package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePosts serves posts keyed by record key.
type fakePosts struct {
	posts      map[string]*PostRecord
	threads    map[string]*ThreadNode
	resolveErr error
	fetchErr   error
	resolved   []string
}

func (f *fakePosts) Resolve(_ context.Context, rawURL string) (PostRef, error) {
	f.resolved = append(f.resolved, rawURL)
	if f.resolveErr != nil {
		return PostRef{}, f.resolveErr
	}
	i := strings.LastIndex(rawURL, "/")
	return PostRef{Repo: "did:plc:alice", Collection: PostCollection, RKey: rawURL[i+1:]}, nil
}

func (f *fakePosts) FetchPost(_ context.Context, ref PostRef) (*PostRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.posts[ref.RKey]
	if !ok {
		return nil, &RemoteFetchError{Status: 404}
	}
	return p, nil
}

func (f *fakePosts) FetchThread(_ context.Context, ref PostRef, _ int) (*ThreadNode, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	t, ok := f.threads[ref.RKey]
	if !ok {
		return nil, ErrEmptyThread
	}
	return t, nil
}

// mockRelocator is a testify mock of MediaRelocator.
type mockRelocator struct {
	mock.Mock
}

func (m *mockRelocator) Relocate(ctx context.Context, sourceURL string) (string, bool) {
	args := m.Called(ctx, sourceURL)
	return args.String(0), args.Bool(1)
}

type createCall struct {
	ParentUID string
	Text      string
	UID       string
}

// fakeHost is an in-memory Host that records writes.
type fakeHost struct {
	blocks    map[string]string
	settings  Settings
	tagged    []BatchItem
	updates   map[string]string
	creates   []createCall
	updateErr error
	shown     []string
	hidden    []string
	hideErrs  []error
	nextUID   int
}

func newFakeHost(settings Settings) *fakeHost {
	return &fakeHost{
		blocks:   make(map[string]string),
		settings: settings,
		updates:  make(map[string]string),
	}
}

func (h *fakeHost) BlockString(_ context.Context, uid string) (string, error) {
	s, ok := h.blocks[uid]
	if !ok {
		return "", ErrBlockNotFound
	}
	return s, nil
}

func (h *fakeHost) UpdateBlock(_ context.Context, uid, text string) error {
	if h.updateErr != nil {
		return h.updateErr
	}
	h.updates[uid] = text
	h.blocks[uid] = text
	return nil
}

func (h *fakeHost) CreateBlock(_ context.Context, parentUID string, _ int, text, uid string) (string, error) {
	if uid == "" {
		h.nextUID++
		uid = fmt.Sprintf("gen-%d", h.nextUID)
	}
	h.creates = append(h.creates, createCall{ParentUID: parentUID, Text: text, UID: uid})
	h.blocks[uid] = text
	return uid, nil
}

func (h *fakeHost) TaggedBlocks(_ context.Context, _ string) ([]BatchItem, error) {
	return h.tagged, nil
}

func (h *fakeHost) Settings(context.Context) (Settings, error) {
	return h.settings, nil
}

func (h *fakeHost) Show(_ context.Context, uid string) { h.shown = append(h.shown, uid) }
func (h *fakeHost) Hide(ctx context.Context, uid string) {
	h.hidden = append(h.hidden, uid)
	h.hideErrs = append(h.hideErrs, ctx.Err())
}

// uidHost is a fakeHost with its own UID format.
type uidHost struct {
	*fakeHost
	n int
}

func (h *uidHost) NewUID() string {
	h.n++
	return fmt.Sprintf("roam-%d", h.n)
}

var testDate = time.Date(2024, time.November, 21, 15, 4, 5, 0, time.UTC)

func alicePost(rkey, text string) *PostRecord {
	return &PostRecord{
		URI:       "at://did:plc:alice/app.bsky.feed.post/" + rkey,
		CID:       "cid-" + rkey,
		Text:      text,
		CreatedAt: testDate,
		Author:    Author{DID: "did:plc:alice", Handle: "alice.bsky.social", DisplayName: "Alice"},
	}
}

func bobPost(rkey, text string) *PostRecord {
	return &PostRecord{
		URI:       "at://did:plc:bob/app.bsky.feed.post/" + rkey,
		Text:      text,
		CreatedAt: testDate,
		Author:    Author{DID: "did:plc:bob", Handle: "bob.bsky.social"},
	}
}
