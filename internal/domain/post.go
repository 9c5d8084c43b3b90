package domain

import "time"

// PostCollection is the only AT Proto collection the extractor addresses.
const PostCollection = "app.bsky.feed.post"

// PostRef addresses a single post record in the remote API.
type PostRef struct {
	// Repo is the DID of the account owning the record.
	Repo string

	// Collection is the record collection NSID.
	Collection string

	// RKey is the record key.
	RKey string
}

// URI returns the AT-URI of the referenced record.
func (r PostRef) URI() string {
	return "at://" + r.Repo + "/" + r.Collection + "/" + r.RKey
}

// Author identifies the account that wrote a post.
type Author struct {
	DID         string
	Handle      string
	DisplayName string
}

// Name returns the display name, falling back to the handle.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

// PostRecord is a hydrated post as returned by the remote API.
type PostRecord struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// CID is the content identifier of the record.
	CID string

	// Text is the post body.
	Text string

	// CreatedAt is the author-supplied creation time.
	CreatedAt time.Time

	Author Author

	// Embed is the attached media, nil when the post has none.
	Embed Embed
}

// RKey returns the record key, the last segment of the post URI.
func (p *PostRecord) RKey() string {
	for i := len(p.URI) - 1; i >= 0; i-- {
		if p.URI[i] == '/' {
			return p.URI[i+1:]
		}
	}
	return p.URI
}

// Embed is the closed set of media variants a post can carry. A nil Embed
// means the post has no media.
type Embed interface {
	embed()
}

// Image is a single picture of an images embed.
type Image struct {
	FullsizeURL string
	Alt         string
}

// ImagesEmbed carries one or more pictures.
type ImagesEmbed struct {
	Images []Image
}

// VideoEmbed carries a single video blob.
type VideoEmbed struct {
	CID string

	// BlobURL is the address the raw video bytes can be fetched from.
	BlobURL string
}

// UnknownEmbed is any embed kind the extractor does not handle (quotes,
// external cards, record-with-media). It renders as no media.
type UnknownEmbed struct {
	Type string
}

func (*ImagesEmbed) embed()  {}
func (*VideoEmbed) embed()   {}
func (*UnknownEmbed) embed() {}

// ThreadNode is one post of a reply tree together with its direct replies.
// Post is nil for a reply by another author that could not be read.
type ThreadNode struct {
	Post    *PostRecord
	Replies []*ThreadNode
}
