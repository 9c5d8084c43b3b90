package domain

import (
	"context"
	"strings"
)

// placedMedia is the outcome of applying a Placement to a post's embed.
type placedMedia struct {
	// images is the value of {IMAGES}.
	images string

	// children are block texts to create beneath the post's block, in order.
	children []string
}

// placeMedia relocates the post's media according to placement. Items that
// fail to relocate are omitted; the rest keep their original order.
func (e *Extractor) placeMedia(ctx context.Context, post *PostRecord, placement Placement) placedMedia {
	if placement == PlacementSkip {
		return placedMedia{}
	}

	switch embed := post.Embed.(type) {
	case nil:
		return placedMedia{}

	case *ImagesEmbed:
		refs := make([]string, 0, len(embed.Images))
		for _, img := range embed.Images {
			e.logger.Debug("relocating image", "uri", post.URI, "src", img.FullsizeURL)
			if ref, ok := e.media.Relocate(ctx, img.FullsizeURL); ok {
				refs = append(refs, ref)
			} else {
				e.logger.Warn("omitting image", "uri", post.URI, "src", img.FullsizeURL, "error", ErrMediaRelocationFailed)
			}
		}
		if placement == PlacementInline {
			return placedMedia{images: strings.Join(refs, " ")}
		}
		return placedMedia{children: refs}

	case *VideoEmbed:
		e.logger.Debug("relocating video", "uri", post.URI, "src", embed.BlobURL)
		ref, ok := e.media.Relocate(ctx, embed.BlobURL)
		if !ok {
			e.logger.Warn("omitting video", "uri", post.URI, "cid", embed.CID, "error", ErrMediaRelocationFailed)
			return placedMedia{}
		}
		if placement == PlacementInline {
			return placedMedia{images: ref}
		}
		return placedMedia{children: []string{ref}}

	case *UnknownEmbed:
		e.logger.Debug("unsupported embed, rendering without media", "uri", post.URI, "type", embed.Type)
		return placedMedia{}

	default:
		return placedMedia{}
	}
}
