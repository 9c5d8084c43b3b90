package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting keys as stored by hosts.
const (
	SettingPostTemplate   = "post-template"
	SettingImageLocation  = "image-location"
	SettingAutoExtract    = "auto-extract"
	SettingAutoExtractTag = "auto-extract-tag"
)

const (
	DefaultPostTemplate   = "[[>]] {POST} {NEWLINE} [🦋]({URL}) by {AUTHOR_NAME} on [[{DATE}]]"
	DefaultAutoExtractTag = "bluesky-extract"
)

// Placement selects where attached media ends up.
type Placement int

const (
	// PlacementChildBlock writes each media item as its own child block.
	PlacementChildBlock Placement = iota

	// PlacementInline substitutes the media references into {IMAGES}.
	PlacementInline

	// PlacementSkip drops media entirely.
	PlacementSkip
)

func (p Placement) String() string {
	switch p {
	case PlacementInline:
		return "inline"
	case PlacementSkip:
		return "skip images"
	default:
		return "child block"
	}
}

// ParsePlacement maps the image-location setting to a Placement. Unknown
// and empty values select child blocks.
func ParsePlacement(s string) Placement {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inline":
		return PlacementInline
	case "skip images", "skip":
		return PlacementSkip
	default:
		return PlacementChildBlock
	}
}

// Settings are the user-facing plugin options.
type Settings struct {
	PostTemplate   string
	ImageLocation  Placement
	AutoExtract    bool
	AutoExtractTag string
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		PostTemplate:   DefaultPostTemplate,
		ImageLocation:  PlacementChildBlock,
		AutoExtractTag: DefaultAutoExtractTag,
	}
}

// SettingsFromMap builds Settings from raw key/value pairs, applying
// defaults for missing or empty entries.
func SettingsFromMap(values map[string]string) Settings {
	s := DefaultSettings()
	if v := values[SettingPostTemplate]; v != "" {
		s.PostTemplate = v
	}
	s.ImageLocation = ParsePlacement(values[SettingImageLocation])
	if v, err := strconv.ParseBool(values[SettingAutoExtract]); err == nil {
		s.AutoExtract = v
	}
	if v := strings.TrimSpace(values[SettingAutoExtractTag]); v != "" {
		s.AutoExtractTag = v
	}
	return s
}

// Map returns the settings as raw key/value pairs.
func (s Settings) Map() map[string]string {
	return map[string]string{
		SettingPostTemplate:   s.PostTemplate,
		SettingImageLocation:  s.ImageLocation.String(),
		SettingAutoExtract:    strconv.FormatBool(s.AutoExtract),
		SettingAutoExtractTag: s.AutoExtractTag,
	}
}

// ValidateSetting checks a single raw setting before it is stored.
func ValidateSetting(key, value string) error {
	switch key {
	case SettingPostTemplate, SettingAutoExtractTag:
		return nil
	case SettingImageLocation:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "", "child block", "inline", "skip images", "skip":
			return nil
		}
		return fmt.Errorf("unsupported image location %q (valid: child block, inline, skip images)", value)
	case SettingAutoExtract:
		if value == "" {
			return nil
		}
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("auto-extract must be a boolean: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}
