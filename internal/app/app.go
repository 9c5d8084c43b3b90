// Package app wires configuration into a ready-to-use extractor.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/blackmichael/bluesky-extract/internal/blockstore"
	"github.com/blackmichael/bluesky-extract/internal/bluesky"
	"github.com/blackmichael/bluesky-extract/internal/config"
	"github.com/blackmichael/bluesky-extract/internal/domain"
	"github.com/blackmichael/bluesky-extract/internal/firehose"
	"github.com/blackmichael/bluesky-extract/internal/media"
	"github.com/blackmichael/bluesky-extract/internal/roam"
)

// App holds the wired components. Store is nil when the host is Roam.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *blockstore.Store
	Host      domain.Host
	Bluesky   *bluesky.Client
	Extractor *domain.Extractor
	Plugin    *domain.Plugin

	closers []func() error
}

// New builds every component named by cfg. The caller must call Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	opts := []domain.Option{
		domain.WithDateFormatter(domain.DateTitleIn(cfg.Location())),
		domain.WithThreadDepth(cfg.Bluesky.ThreadDepth),
		domain.WithRetryPolicy(NewRetryPolicy(cfg.Batch.Attempts, cfg.Batch.Delay, logger)),
	}

	switch cfg.Host {
	case config.HostRoam:
		a.Host = roam.NewClient(cfg.Roam.APIURL, cfg.Roam.Graph, cfg.Roam.Token, seedSettings(cfg.Settings), logger)
	default:
		store, err := blockstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open block store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Store = store
		a.Host = store
		opts = append(opts, domain.WithIndicator(store))
	}

	mediaStore, err := a.newMediaStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Bluesky = bluesky.NewClient(bluesky.Options{
		Relay:      cfg.Bluesky.Relay,
		AppViewURL: cfg.Bluesky.AppViewURL,
		ProfileURL: cfg.Bluesky.ProfileURL,
		BlobHost:   cfg.Bluesky.BlobHost,
		Timeout:    cfg.Bluesky.Timeout,
	}, logger)

	relocator := media.NewRelocator(mediaStore, cfg.Bluesky.Relay, 0, logger)
	a.Extractor = domain.NewExtractor(a.Bluesky, relocator, a.Host, logger, opts...)
	a.Plugin = domain.NewPlugin(a.Extractor, logger)

	return a, nil
}

func (a *App) newMediaStore(ctx context.Context) (media.Store, error) {
	cfg := a.Config.Media
	switch cfg.Store {
	case config.MediaGCS:
		var opts []option.ClientOption
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return media.NewGCSStore(client, cfg.Bucket, cfg.Prefix, cfg.BaseURL), nil

	case config.MediaS3:
		return media.NewS3Store(media.S3Config{
			Region:   cfg.Region,
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Endpoint: cfg.Endpoint,
		})

	default:
		return media.NewLocalStore(cfg.Dir, cfg.BaseURL)
	}
}

// NewWatcher builds a firehose watcher that files new posts by the followed
// accounts into the host and extracts them.
func (a *App) NewWatcher(ctx context.Context) (*firehose.Watcher, error) {
	parent, err := a.watchParent(ctx)
	if err != nil {
		return nil, err
	}

	handler := &watchHandler{
		host:      a.Host,
		extractor: a.Extractor,
		parentUID: parent,
		logger:    a.Logger,
	}

	var cursors firehose.CursorStore
	if a.Store != nil {
		cursors = a.Store
	}
	return firehose.NewWatcher(a.Config.Firehose.URL, a.Config.Firehose.Follow, handler, cursors, a.Logger), nil
}

func (a *App) watchParent(ctx context.Context) (string, error) {
	if uid := a.Config.Firehose.ParentUID; uid != "" {
		return uid, nil
	}
	if a.Store == nil {
		return roam.DailyPageUID(time.Now().In(a.Config.Location())), nil
	}
	uid, err := a.Store.EnsurePage(ctx, a.Config.Firehose.Page)
	if err != nil {
		return "", fmt.Errorf("ensure page %q: %w", a.Config.Firehose.Page, err)
	}
	return uid, nil
}

// Close releases every resource opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func seedSettings(s config.SettingsConfig) domain.Settings {
	return domain.SettingsFromMap(map[string]string{
		domain.SettingPostTemplate:   s.PostTemplate,
		domain.SettingImageLocation:  s.ImageLocation,
		domain.SettingAutoExtract:    fmt.Sprint(s.AutoExtract),
		domain.SettingAutoExtractTag: s.AutoExtractTag,
	})
}
