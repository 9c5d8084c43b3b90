package bluesky

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// ParsedURL is a post URL split into its parts. Handle is set only for
// bsky.app links, whose Ref.Repo is empty until the handle is resolved.
type ParsedURL struct {
	Handle string
	Ref    domain.PostRef
}

// ParsePostURL accepts https://bsky.app/profile/<handle>/post/<rkey> and
// at://<did>/<collection>/<rkey>.
func ParsePostURL(raw string) (ParsedURL, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "at://") {
		parts := strings.Split(strings.TrimPrefix(raw, "at://"), "/")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return ParsedURL{}, fmt.Errorf("%w: %s", domain.ErrInvalidURLFormat, raw)
		}
		return ParsedURL{Ref: domain.PostRef{Repo: parts[0], Collection: parts[1], RKey: parts[2]}}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "bsky.app") {
		return ParsedURL{}, fmt.Errorf("%w: %s", domain.ErrInvalidURLFormat, raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+3 < len(segments); i++ {
		if segments[i] != "profile" || segments[i+2] != "post" {
			continue
		}
		handle, rkey := segments[i+1], segments[i+3]
		if handle == "" || rkey == "" {
			break
		}
		return ParsedURL{
			Handle: handle,
			Ref:    domain.PostRef{Collection: domain.PostCollection, RKey: rkey},
		}, nil
	}

	return ParsedURL{}, fmt.Errorf("%w: %s", domain.ErrInvalidURLFormat, raw)
}
