package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const postLink = "https://bsky.app/profile/alice.bsky.social/post/3kabc"

func testSettings(tmpl string, placement Placement) Settings {
	s := DefaultSettings()
	s.PostTemplate = tmpl
	s.ImageLocation = placement
	return s
}

func newTestExtractor(posts PostSource, media MediaRelocator, host Host, opts ...Option) *Extractor {
	return NewExtractor(posts, media, host, discardLogger(), opts...)
}

func TestExtractPost_WritesRenderedText(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": alicePost("3kabc", "hello")}}
	host := newFakeHost(testSettings("{POST} by {AUTHOR_HANDLE} {URL} {IMAGES}|", PlacementChildBlock))
	media := new(mockRelocator)

	e := newTestExtractor(posts, media, host, WithIndicator(host))
	err := e.ExtractPost(context.Background(), "b1", "check this "+postLink)

	require.NoError(t, err)
	assert.Equal(t, "hello by alice.bsky.social "+postLink+" |", host.updates["b1"])
	assert.Empty(t, host.creates)
	assert.Equal(t, []string{postLink}, posts.resolved)
	assert.Equal(t, []string{"b1"}, host.shown)
	assert.Equal(t, []string{"b1"}, host.hidden)
	media.AssertNotCalled(t, "Relocate", mock.Anything, mock.Anything)
}

func TestExtractPost_MalformedResponseLeavesBlockUntouched(t *testing.T) {
	posts := &fakePosts{fetchErr: ErrMalformedResponse}
	host := newFakeHost(DefaultSettings())
	host.blocks["b1"] = postLink

	e := newTestExtractor(posts, new(mockRelocator), host, WithIndicator(host))
	err := e.ExtractPost(context.Background(), "b1", postLink)

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Empty(t, host.updates)
	assert.Empty(t, host.creates)
	assert.Equal(t, postLink, host.blocks["b1"])
	assert.Equal(t, []string{"b1"}, host.hidden)
}

func TestExtractPost_NoURL(t *testing.T) {
	posts := &fakePosts{}
	host := newFakeHost(DefaultSettings())

	e := newTestExtractor(posts, new(mockRelocator), host)
	err := e.ExtractPost(context.Background(), "b1", "no link here")

	assert.ErrorIs(t, err, ErrInvalidURLFormat)
	assert.Empty(t, posts.resolved)
	assert.Empty(t, host.updates)
}

func TestExtractPost_ResolveError(t *testing.T) {
	posts := &fakePosts{resolveErr: ErrHandleResolutionFailed}
	host := newFakeHost(DefaultSettings())

	e := newTestExtractor(posts, new(mockRelocator), host)
	err := e.ExtractPost(context.Background(), "b1", postLink)

	assert.ErrorIs(t, err, ErrHandleResolutionFailed)
	assert.Empty(t, host.updates)
}

func TestExtractPost_HostWriteError(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": alicePost("3kabc", "hello")}}
	host := newFakeHost(DefaultSettings())
	host.updateErr = errors.New("disk full")

	e := newTestExtractor(posts, new(mockRelocator), host)
	err := e.ExtractPost(context.Background(), "b1", postLink)

	var hwe *HostWriteError
	require.ErrorAs(t, err, &hwe)
	assert.Equal(t, "update", hwe.Op)
	assert.Equal(t, "b1", hwe.UID)
}

func imagePost() *PostRecord {
	p := alicePost("3kabc", "pics")
	p.Embed = &ImagesEmbed{Images: []Image{
		{FullsizeURL: "https://cdn.example/a"},
		{FullsizeURL: "https://cdn.example/b"},
		{FullsizeURL: "https://cdn.example/c"},
	}}
	return p
}

func TestExtractPost_InlineImagesSkipFailures(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": imagePost()}}
	host := newFakeHost(testSettings("{POST}:{IMAGES}", PlacementInline))

	media := new(mockRelocator)
	media.On("Relocate", mock.Anything, "https://cdn.example/a").Return("![](A)", true)
	media.On("Relocate", mock.Anything, "https://cdn.example/b").Return("", false)
	media.On("Relocate", mock.Anything, "https://cdn.example/c").Return("![](C)", true)

	e := newTestExtractor(posts, media, host)
	require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))

	assert.Equal(t, "pics:![](A) ![](C)", host.updates["b1"])
	assert.Empty(t, host.creates)
	media.AssertExpectations(t)
}

func TestExtractPost_ChildBlockImagesInOrder(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": imagePost()}}
	host := newFakeHost(testSettings("{POST}{IMAGES}", PlacementChildBlock))

	media := new(mockRelocator)
	media.On("Relocate", mock.Anything, "https://cdn.example/a").Return("![](A)", true)
	media.On("Relocate", mock.Anything, "https://cdn.example/b").Return("![](B)", true)
	media.On("Relocate", mock.Anything, "https://cdn.example/c").Return("", false)

	e := newTestExtractor(posts, media, host)
	require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))

	assert.Equal(t, "pics", host.updates["b1"])
	assert.Equal(t, []createCall{
		{ParentUID: "b1", Text: "![](A)", UID: "gen-1"},
		{ParentUID: "b1", Text: "![](B)", UID: "gen-2"},
	}, host.creates)
}

func TestExtractPost_SkipImages(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": imagePost()}}
	host := newFakeHost(testSettings("{POST}[{IMAGES}]", PlacementSkip))
	media := new(mockRelocator)

	e := newTestExtractor(posts, media, host)
	require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))

	assert.Equal(t, "pics[]", host.updates["b1"])
	assert.Empty(t, host.creates)
	media.AssertNotCalled(t, "Relocate", mock.Anything, mock.Anything)
}

func videoPost() *PostRecord {
	p := alicePost("3kabc", "clip")
	p.Embed = &VideoEmbed{CID: "bafvid", BlobURL: "https://blob.example/bafvid"}
	return p
}

func TestExtractPost_Video(t *testing.T) {
	tests := []struct {
		name      string
		placement Placement
		ok        bool
		want      string
		children  int
	}{
		{"inline", PlacementInline, true, "clip[VID]", 0},
		{"child block", PlacementChildBlock, true, "clip[]", 1},
		{"inline failed", PlacementInline, false, "clip[]", 0},
		{"child block failed", PlacementChildBlock, false, "clip[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": videoPost()}}
			host := newFakeHost(testSettings("{POST}[{IMAGES}]", tt.placement))

			media := new(mockRelocator)
			ref := ""
			if tt.ok {
				ref = "VID"
			}
			media.On("Relocate", mock.Anything, "https://blob.example/bafvid").Return(ref, tt.ok).Once()

			e := newTestExtractor(posts, media, host)
			require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))

			assert.Equal(t, tt.want, host.updates["b1"])
			assert.Len(t, host.creates, tt.children)
			media.AssertExpectations(t)
		})
	}
}

func TestExtractPost_NoOrUnknownEmbedClearsImages(t *testing.T) {
	for _, embed := range []Embed{nil, &UnknownEmbed{Type: "app.bsky.embed.external#view"}} {
		for _, placement := range []Placement{PlacementChildBlock, PlacementInline, PlacementSkip} {
			post := alicePost("3kabc", "text")
			post.Embed = embed
			posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": post}}
			host := newFakeHost(testSettings("{POST}<{IMAGES}>", placement))
			media := new(mockRelocator)

			e := newTestExtractor(posts, media, host)
			require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))

			assert.Equal(t, "text<>", host.updates["b1"])
			assert.Empty(t, host.creates)
			media.AssertNotCalled(t, "Relocate", mock.Anything, mock.Anything)
		}
	}
}

func TestExtractPost_StateTransitions(t *testing.T) {
	var states []State
	hook := func(_ string, _, to State) { states = append(states, to) }

	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": videoPost()}}
	host := newFakeHost(testSettings("{POST}", PlacementInline))
	media := new(mockRelocator)
	media.On("Relocate", mock.Anything, mock.Anything).Return("VID", true)

	e := newTestExtractor(posts, media, host, WithStateHook(hook))
	require.NoError(t, e.ExtractPost(context.Background(), "b1", postLink))
	assert.Equal(t, []State{StateFetching, StateRendering, StateMediaResolving, StateWriting, StateDone}, states)

	states = nil
	posts.fetchErr = &RemoteFetchError{Status: 500}
	require.Error(t, e.ExtractPost(context.Background(), "b1", postLink))
	assert.Equal(t, []State{StateFetching, StateFailed}, states)
}

func TestExtractBlock_ReadsBlockText(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"3kabc": alicePost("3kabc", "hello")}}
	host := newFakeHost(testSettings("{POST}", PlacementChildBlock))
	host.blocks["b1"] = "#bluesky-extract " + postLink

	e := newTestExtractor(posts, new(mockRelocator), host)
	require.NoError(t, e.ExtractBlock(context.Background(), "b1"))
	assert.Equal(t, "hello", host.blocks["b1"])

	assert.ErrorIs(t, e.ExtractBlock(context.Background(), "missing"), ErrBlockNotFound)
}

func threadFixture() *ThreadNode {
	first := alicePost("r", "one")
	first.Embed = &ImagesEmbed{Images: []Image{{FullsizeURL: "https://cdn.example/r"}}}
	third := alicePost("p3", "three")
	third.Embed = &ImagesEmbed{Images: []Image{{FullsizeURL: "https://cdn.example/p3"}}}

	return &ThreadNode{
		Post: first,
		Replies: []*ThreadNode{
			{
				Post: alicePost("p1", "two"),
				Replies: []*ThreadNode{
					{Post: bobPost("p2", "reply")},
					{Post: third},
				},
			},
		},
	}
}

func TestExtractThread(t *testing.T) {
	posts := &fakePosts{threads: map[string]*ThreadNode{"r": threadFixture()}}
	host := &uidHost{fakeHost: newFakeHost(testSettings("{POST} {URL}", PlacementChildBlock))}
	host.blocks["b1"] = "https://bsky.app/profile/alice.bsky.social/post/r"

	media := new(mockRelocator)
	media.On("Relocate", mock.Anything, "https://cdn.example/r").Return("![](R)", true)
	media.On("Relocate", mock.Anything, "https://cdn.example/p3").Return("![](P3)", true)

	e := newTestExtractor(posts, media, host)
	require.NoError(t, e.ExtractThread(context.Background(), "b1"))

	assert.Equal(t, "one https://bsky.app/profile/alice.bsky.social/post/r", host.updates["b1"])
	assert.Equal(t, []createCall{
		{ParentUID: "b1", Text: "![](R)", UID: "gen-1"},
		{ParentUID: "b1", Text: "two https://bsky.app/profile/alice.bsky.social/post/p1", UID: "roam-1"},
		{ParentUID: "b1", Text: "three https://bsky.app/profile/alice.bsky.social/post/p3", UID: "roam-2"},
		{ParentUID: "roam-2", Text: "![](P3)", UID: "gen-2"},
	}, host.creates)
	media.AssertExpectations(t)
}

func TestExtractThread_Errors(t *testing.T) {
	t.Run("no url", func(t *testing.T) {
		host := newFakeHost(DefaultSettings())
		host.blocks["b1"] = "nothing"
		e := newTestExtractor(&fakePosts{}, new(mockRelocator), host)
		assert.ErrorIs(t, e.ExtractThread(context.Background(), "b1"), ErrNoURL)
	})

	t.Run("empty thread", func(t *testing.T) {
		host := newFakeHost(DefaultSettings())
		host.blocks["b1"] = postLink
		e := newTestExtractor(&fakePosts{}, new(mockRelocator), host, WithIndicator(host))
		assert.ErrorIs(t, e.ExtractThread(context.Background(), "b1"), ErrEmptyThread)
		assert.Empty(t, host.updates)
		assert.Equal(t, []string{"b1"}, host.hidden)
	})

	t.Run("missing block", func(t *testing.T) {
		e := newTestExtractor(&fakePosts{}, new(mockRelocator), newFakeHost(DefaultSettings()))
		assert.ErrorIs(t, e.ExtractThread(context.Background(), "nope"), ErrBlockNotFound)
	})
}

func TestExtractBatch_ContinuesAfterFailure(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{
		"good1": alicePost("good1", "first"),
		"good2": alicePost("good2", "second"),
	}}
	host := newFakeHost(testSettings("{POST}", PlacementChildBlock))

	e := newTestExtractor(posts, new(mockRelocator), host)
	report := e.ExtractBatch(context.Background(), []BatchItem{
		{UID: "a", Text: "https://bsky.app/profile/alice/post/good1"},
		{UID: "b", Text: "https://bsky.app/profile/alice/post/missing"},
		{UID: "c", Text: "no url"},
		{UID: "d", Text: "https://bsky.app/profile/alice/post/good2"},
	})

	require.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Failed())
	assert.NoError(t, report.Results[0].Err)
	assert.Error(t, report.Results[1].Err)
	assert.Error(t, report.Results[2].Err)
	assert.NoError(t, report.Results[3].Err)
	assert.Equal(t, map[string]string{"a": "first", "d": "second"}, host.updates)
}

type countingPolicy struct{ calls int }

func (p *countingPolicy) Do(_ context.Context, fn func() error) error {
	p.calls++
	return fn()
}

func TestExtractBatch_UsesRetryPolicy(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"x": alicePost("x", "x")}}
	host := newFakeHost(DefaultSettings())
	policy := &countingPolicy{}

	e := newTestExtractor(posts, new(mockRelocator), host, WithRetryPolicy(policy))
	e.ExtractBatch(context.Background(), []BatchItem{{UID: "a", Text: "https://bsky.app/profile/a/post/x"}, {UID: "b", Text: ""}})
	assert.Equal(t, 2, policy.calls)
}

func TestAutoExtract(t *testing.T) {
	posts := &fakePosts{posts: map[string]*PostRecord{"x": alicePost("x", "x")}}
	host := newFakeHost(testSettings("{POST}", PlacementChildBlock))
	host.tagged = []BatchItem{{UID: "a", Text: "#bluesky-extract https://bsky.app/profile/a/post/x"}}

	e := newTestExtractor(posts, new(mockRelocator), host)

	report, err := e.AutoExtract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Empty(t, host.updates)

	host.settings.AutoExtract = true
	report, err = e.AutoExtract(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, "x", host.updates["a"])
}

func TestExtract_HidesIndicatorAfterCancel(t *testing.T) {
	posts := &fakePosts{fetchErr: context.Canceled}
	host := newFakeHost(DefaultSettings())
	host.blocks["b1"] = postLink

	e := newTestExtractor(posts, new(mockRelocator), host, WithIndicator(host))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.ExtractPost(ctx, "b1", postLink), context.Canceled)
	assert.Error(t, e.ExtractThread(ctx, "b1"))

	assert.Equal(t, []string{"b1", "b1"}, host.hidden)
	assert.Equal(t, []error{nil, nil}, host.hideErrs)
}
