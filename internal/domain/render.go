package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Template placeholders.
const (
	PlaceholderPost         = "{POST}"
	PlaceholderURL          = "{URL}"
	PlaceholderAuthorName   = "{AUTHOR_NAME}"
	PlaceholderAuthorHandle = "{AUTHOR_HANDLE}"
	PlaceholderAuthorURL    = "{AUTHOR_URL}"
	PlaceholderDate         = "{DATE}"
	PlaceholderNewline      = "{NEWLINE}"
	PlaceholderImages       = "{IMAGES}"
)

// Placeholders lists every recognized placeholder in substitution order.
var Placeholders = []string{
	PlaceholderPost,
	PlaceholderURL,
	PlaceholderAuthorName,
	PlaceholderAuthorHandle,
	PlaceholderAuthorURL,
	PlaceholderDate,
	PlaceholderNewline,
	PlaceholderImages,
}

// RenderContext holds the resolved value of every placeholder.
type RenderContext struct {
	Post         string
	URL          string
	AuthorName   string
	AuthorHandle string
	AuthorURL    string
	Date         string
	Newline      string
	Images       string
}

// NewRenderContext resolves every placeholder except {IMAGES}, which depends
// on media relocation and is filled in by the caller.
func NewRenderContext(post *PostRecord, postURL string, date DateFormatter) RenderContext {
	return RenderContext{
		Post:         post.Text,
		URL:          postURL,
		AuthorName:   post.Author.Name(),
		AuthorHandle: post.Author.Handle,
		AuthorURL:    ProfileURL(post.Author.Handle),
		Date:         date(post.CreatedAt),
		Newline:      "\n",
	}
}

func (rc RenderContext) value(placeholder string) string {
	switch placeholder {
	case PlaceholderPost:
		return rc.Post
	case PlaceholderURL:
		return rc.URL
	case PlaceholderAuthorName:
		return rc.AuthorName
	case PlaceholderAuthorHandle:
		return rc.AuthorHandle
	case PlaceholderAuthorURL:
		return rc.AuthorURL
	case PlaceholderDate:
		return rc.Date
	case PlaceholderNewline:
		return rc.Newline
	case PlaceholderImages:
		return rc.Images
	}
	return ""
}

// Render substitutes every occurrence of each placeholder in tmpl, one
// placeholder at a time, {IMAGES} last. A placeholder token appearing inside
// a substituted value is not protected from later substitutions.
func Render(tmpl string, rc RenderContext) string {
	out := tmpl
	for _, p := range Placeholders {
		out = strings.ReplaceAll(out, p, rc.value(p))
	}
	return out
}

// ProfileURL returns the bsky.app profile page of a handle.
func ProfileURL(handle string) string {
	return "https://bsky.app/profile/" + handle
}

// PostURL returns the canonical bsky.app link of a post.
func PostURL(post *PostRecord) string {
	return ProfileURL(post.Author.Handle) + "/post/" + post.RKey()
}

var (
	webURLPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp|file)://[-A-Z0-9+&@#/%?=~_|!:,.;]*[-A-Z0-9+&@#/%=~_|]`)
	atURIPattern  = regexp.MustCompile(`at://[^\s\])>"']*[^\s\])>"'.,;:!?]`)
)

// FindPostURL returns the last URL in text. An at:// URI is used only when
// the text holds no web URL.
func FindPostURL(text string) (string, bool) {
	if urls := webURLPattern.FindAllString(text, -1); len(urls) > 0 {
		return urls[len(urls)-1], true
	}
	if uris := atURIPattern.FindAllString(text, -1); len(uris) > 0 {
		return uris[len(uris)-1], true
	}
	return "", false
}

// RoamDateTitle formats t as a Roam daily page title, e.g. "October 19th, 2026".
func RoamDateTitle(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d", t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year())
}

// DateTitleIn returns a formatter rendering dates in loc.
func DateTitleIn(loc *time.Location) DateFormatter {
	return func(t time.Time) string {
		return RoamDateTitle(t.In(loc))
	}
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
