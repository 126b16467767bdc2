// Package walker drives a feed run: it finds the year folders under the
// drive's "Videos" folder and writes one feed item per video.
package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gauthierbraillon/vidfeed/internal/feed"
	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/resolver"
	"github.com/gauthierbraillon/vidfeed/internal/retry"
)

// VideosFolder is the root folder name that holds the year folders.
const VideosFolder = "Videos"

// Lister lists drive items.
type Lister interface {
	ListRootItems(ctx context.Context) ([]graph.DriveItem, error)
	ListChildren(ctx context.Context, itemID string) ([]graph.DriveItem, error)
}

// LinkSource resolves a video's download link.
type LinkSource interface {
	Resolve(ctx context.Context, item graph.DriveItem) (resolver.ShareLink, error)
}

// ThumbnailSource resolves a video's thumbnail URL.
type ThumbnailSource interface {
	Resolve(ctx context.Context, itemID string) (string, error)
}

// Walker runs one traversal. It is not reusable: the registry it writes to
// is closed when Run returns.
type Walker struct {
	lister Lister
	links  LinkSource
	thumbs ThumbnailSource
	feeds  *feed.Registry
	retry  retry.Config
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithRetry sets the backoff used when a folder listing fails transiently.
func WithRetry(cfg retry.Config) Option {
	return func(w *Walker) {
		w.retry = cfg
	}
}

// New creates a Walker. Listings are retried with retry.DefaultConfig unless
// WithRetry says otherwise.
func New(lister Lister, links LinkSource, thumbs ThumbnailSource, feeds *feed.Registry, logger zerolog.Logger, opts ...Option) *Walker {
	w := &Walker{
		lister: lister,
		links:  links,
		thumbs: thumbs,
		feeds:  feeds,
		retry:  retry.DefaultConfig(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run writes a feed for every year folder accepted by filter. Every opened
// feed is finalized before Run returns, on every path. Per-video and
// per-folder failures are collected in the report; only a rejected
// credential, a canceled context, or an unreadable drive root abort the run.
func (w *Walker) Run(ctx context.Context, filter YearFilter) (rep *Report, err error) {
	rep = newReport(uuid.NewString(), w.now())
	log := w.logger.With().Str("run_id", rep.RunID).Logger()

	defer func() {
		if cerr := w.feeds.CloseAll(); cerr != nil {
			log.Error().Err(cerr).Msg("closing feeds")
			err = errors.Join(err, cerr)
		}
		for _, year := range w.feeds.Years() {
			if f, ok := w.feeds.Feed(year); ok {
				rep.Written[year] = f.Items()
			}
		}
		rep.FinishedAt = w.now()
	}()

	root, err := w.list(ctx, log, "drive root", func(ctx context.Context) ([]graph.DriveItem, error) {
		return w.lister.ListRootItems(ctx)
	})
	if err != nil {
		return rep, fmt.Errorf("list drive root: %w", err)
	}

	videos, ok := findByName(root, VideosFolder)
	if !ok {
		log.Info().Msg("no Videos folder at the drive root, nothing to do")
		return rep, nil
	}
	rep.VideosRoot = true
	log.Info().Str("id", videos.ID).Str("name", videos.Name).Msg("found videos folder")

	folders, err := w.listChildren(ctx, log, videos)
	if err != nil {
		return rep, fmt.Errorf("list %s: %w", VideosFolder, err)
	}
	log.Info().Msgf("%d folders of videos", len(folders))

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := w.walkFolder(ctx, log, rep, folder, filter); err != nil {
			return rep, fmt.Errorf("aborting run in folder %q: %w", folder.Name, err)
		}
	}
	return rep, nil
}

// walkFolder returns an error only when the whole run must stop.
func (w *Walker) walkFolder(ctx context.Context, log zerolog.Logger, rep *Report, folder graph.DriveItem, filter YearFilter) error {
	log.Info().Msgf("Folder: %s", folder.Name)

	year, ok := YearKey(folder.Name)
	if !ok {
		log.Warn().Str("folder", folder.Name).Msg("folder name too short to hold a year, skipping")
		rep.Skipped = append(rep.Skipped, folder.Name)
		return nil
	}
	if !filter(year) {
		return nil
	}
	rep.Folders++

	log.Info().Str("folder", folder.Name).Msg("Processing Folder")
	children, err := w.listChildren(ctx, log, folder)
	if err != nil {
		if isFatal(ctx, err) {
			return err
		}
		log.Error().Err(err).Str("folder", folder.Name).Msg("cannot list folder")
		rep.fail(year, folder.Name, "", err)
		return nil
	}

	// The year's feed is created on its first video, so a folder without
	// videos leaves no file behind.
	var out *feed.YearFeed
	for _, v := range children {
		if !IsVideoName(v.Name) {
			continue
		}
		if out == nil {
			if out, err = w.feeds.Open(year); err != nil {
				log.Error().Err(err).Str("year", year).Msg("cannot open feed")
				rep.fail(year, folder.Name, "", err)
				return nil
			}
		}
		if ferr := out.Err(); ferr != nil {
			rep.fail(year, folder.Name, v.Name, ferr)
			continue
		}
		if err := w.processVideo(ctx, log, rep, out, folder.Name, v); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			log.Error().Err(err).Str("video", v.Name).Msg("video skipped")
			rep.fail(year, folder.Name, v.Name, err)
		}
	}
	return nil
}

func (w *Walker) processVideo(ctx context.Context, log zerolog.Logger, rep *Report, out *feed.YearFeed, folderName string, v graph.DriveItem) error {
	log.Info().Str("video", v.Name).Msg(" Processing Video")

	link, err := w.links.Resolve(ctx, v)
	if err != nil {
		return err
	}
	if link.Malformed {
		rep.Malformed = append(rep.Malformed, v.Name)
	}

	thumb, err := w.thumbs.Resolve(ctx, v.ID)
	if err != nil {
		return err
	}

	item := feed.Item{
		Title:       v.Name,
		Description: v.Description,
		PubDate:     folderName,
		GUID:        v.ID,
		Size:        v.Size,
		Link:        link.Download,
		Thumbnail:   thumb,
	}
	if v.Video != nil {
		item.Video = &feed.Video{Duration: v.Video.Duration, Width: v.Video.Width, Height: v.Video.Height}
	}
	return out.WriteItem(item)
}

func (w *Walker) listChildren(ctx context.Context, log zerolog.Logger, folder graph.DriveItem) ([]graph.DriveItem, error) {
	return w.list(ctx, log, folder.Name, func(ctx context.Context) ([]graph.DriveItem, error) {
		return w.lister.ListChildren(ctx, folder.ID)
	})
}

// list retries fn on transient failures; the error is returned only once
// the retry budget is spent.
func (w *Walker) list(ctx context.Context, log zerolog.Logger, what string, fn func(context.Context) ([]graph.DriveItem, error)) ([]graph.DriveItem, error) {
	var items []graph.DriveItem
	err := retry.Do(ctx, w.retry, graph.IsTransient, func(ctx context.Context) error {
		got, err := fn(ctx)
		if err != nil {
			log.Warn().Err(err).Str("folder", what).Msg("listing failed")
			return err
		}
		items = got
		return nil
	})
	return items, err
}

func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, graph.ErrUnauthorized) || ctx.Err() != nil
}

func findByName(items []graph.DriveItem, name string) (graph.DriveItem, bool) {
	for _, it := range items {
		if it.Name == name {
			return it, true
		}
	}
	return graph.DriveItem{}, false
}
