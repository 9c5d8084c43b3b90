package firehose

// jetstreamEvent is the part of a Jetstream event the watcher reads.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

type jetstreamCommit struct {
	Operation  string      `json:"operation"`
	Collection string      `json:"collection"`
	RKey       string      `json:"rkey"`
	Record     *postRecord `json:"record,omitempty"`
}

// postRecord is an app.bsky.feed.post record. Reply is only checked for
// presence: replies are not filed.
type postRecord struct {
	Text  string    `json:"text"`
	Reply *struct{} `json:"reply,omitempty"`
}
