package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// watchHandler appends each followed post as a tagged block under parentUID
// and extracts it in place.
type watchHandler struct {
	host      domain.Host
	extractor *domain.Extractor
	parentUID string
	logger    *slog.Logger
}

func (h *watchHandler) HandlePost(ctx context.Context, did, rkey string) error {
	settings, err := h.host.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	text := fmt.Sprintf("#[[%s]] %s/post/%s", settings.AutoExtractTag, domain.ProfileURL(did), rkey)
	uid, err := h.host.CreateBlock(ctx, h.parentUID, domain.OrderLast, text, "")
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	h.logger.Debug("filed followed post", "uid", uid, "did", did, "rkey", rkey)

	return h.extractor.ExtractPost(ctx, uid, text)
}
