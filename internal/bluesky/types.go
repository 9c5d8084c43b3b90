package bluesky

const (
	embedImagesView = "app.bsky.embed.images#view"
	embedVideoView  = "app.bsky.embed.video#view"
)

// profileView is the subset of app.bsky.actor.defs#profileViewDetailed we read.
type profileView struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// threadResponse is the body of app.bsky.feed.getPostThread.
type threadResponse struct {
	Thread *threadViewPost `json:"thread"`
}

// threadViewPost is a node of the thread. Not-found and blocked nodes carry
// no post.
type threadViewPost struct {
	Type    string            `json:"$type"`
	Post    *postView         `json:"post,omitempty"`
	Replies []*threadViewPost `json:"replies,omitempty"`
}

type postView struct {
	URI    string     `json:"uri"`
	CID    string     `json:"cid"`
	Author authorView `json:"author"`
	Record postRecord `json:"record"`
	Embed  *embedView `json:"embed,omitempty"`
}

type authorView struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// postRecord is the content of an app.bsky.feed.post record. Text is a
// pointer so a missing field can be told apart from an empty post.
type postRecord struct {
	Type      string  `json:"$type"`
	Text      *string `json:"text"`
	CreatedAt string  `json:"createdAt"`
}

// embedView covers the images and video view shapes; other kinds only
// populate Type.
type embedView struct {
	Type     string      `json:"$type"`
	Images   []imageView `json:"images,omitempty"`
	CID      string      `json:"cid,omitempty"`
	Playlist string      `json:"playlist,omitempty"`
}

type imageView struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}
