package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-extract/internal/blockstore"
	"github.com/blackmichael/bluesky-extract/internal/config"
	"github.com/blackmichael/bluesky-extract/internal/domain"
	"github.com/blackmichael/bluesky-extract/internal/roam"
)

type stubPosts struct{}

func (stubPosts) Resolve(_ context.Context, rawURL string) (domain.PostRef, error) {
	parts := strings.Split(rawURL, "/")
	return domain.PostRef{Repo: parts[len(parts)-3], Collection: domain.PostCollection, RKey: parts[len(parts)-1]}, nil
}

func (stubPosts) FetchPost(_ context.Context, ref domain.PostRef) (*domain.PostRecord, error) {
	return &domain.PostRecord{
		URI:       ref.URI(),
		Text:      "followed " + ref.RKey,
		CreatedAt: time.Date(2024, 11, 21, 0, 0, 0, 0, time.UTC),
		Author:    domain.Author{DID: ref.Repo, Handle: "alice.bsky.social"},
	}, nil
}

func (stubPosts) FetchThread(context.Context, domain.PostRef, int) (*domain.ThreadNode, error) {
	return nil, domain.ErrEmptyThread
}

type noMedia struct{}

func (noMedia) Relocate(context.Context, string) (string, bool) { return "", false }

func TestWatchHandler_FilesAndExtracts(t *testing.T) {
	ctx := context.Background()
	store, err := blockstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SetSetting(ctx, domain.SettingPostTemplate, "{POST}"))

	page, err := store.EnsurePage(ctx, "Bluesky")
	require.NoError(t, err)

	h := &watchHandler{
		host:      store,
		extractor: domain.NewExtractor(stubPosts{}, noMedia{}, store, discardLogger()),
		parentUID: page,
		logger:    discardLogger(),
	}
	require.NoError(t, h.HandlePost(ctx, "did:plc:alice", "3kpost"))

	b, err := store.Block(ctx, page)
	require.NoError(t, err)
	require.Len(t, b.Children, 1)
	assert.Equal(t, "followed 3kpost", b.Children[0].String)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DatabaseURL = ":memory:"
	cfg.Media.Dir = t.TempDir()
	cfg.Firehose.Follow = []string{"did:plc:alice"}
	return cfg
}

func TestNew_StoreHost(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), discardLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store)
	assert.Same(t, a.Store, a.Host)
	assert.NotNil(t, a.Extractor)
	assert.NotNil(t, a.Plugin)

	w, err := a.NewWatcher(ctx)
	require.NoError(t, err)
	assert.NotNil(t, w)

	uid, err := a.Store.EnsurePage(ctx, a.Config.Firehose.Page)
	require.NoError(t, err)
	parent, err := a.watchParent(ctx)
	require.NoError(t, err)
	assert.Equal(t, uid, parent)
}

func TestNew_RoamHost(t *testing.T) {
	cfg := testConfig(t)
	cfg.Host = config.HostRoam
	cfg.Roam.Graph = "notes"
	cfg.Roam.Token = "tok"
	cfg.Settings.ImageLocation = "inline"

	a, err := New(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store)
	settings, err := a.Host.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlacementInline, settings.ImageLocation)
	assert.Equal(t, domain.DefaultPostTemplate, settings.PostTemplate)

	parent, err := a.watchParent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, roam.DailyPageUID(time.Now().UTC()), parent)

	cfg.Firehose.ParentUID = "inbox"
	parent, err = a.watchParent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inbox", parent)
}
