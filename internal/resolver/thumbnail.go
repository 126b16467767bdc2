package resolver

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/retry"
)

// ThumbnailResolver picks the large rendition of an item's first thumbnail set.
type ThumbnailResolver struct {
	gw       Gateway
	retry    retry.Config
	fallback string
	logger   zerolog.Logger
}

// NewThumbnailResolver creates a resolver that falls back to fallback.
func NewThumbnailResolver(gw Gateway, cfg retry.Config, fallback string, logger zerolog.Logger) *ThumbnailResolver {
	return &ThumbnailResolver{gw: gw, retry: cfg, fallback: fallback, logger: logger}
}

// Resolve returns the XML-escaped thumbnail URL for itemID. Items without
// thumbnails, and items whose thumbnails cannot be listed, get the fallback.
// Only a rejected credential or a canceled context is returned as an error.
func (r *ThumbnailResolver) Resolve(ctx context.Context, itemID string) (string, error) {
	var sets []graph.ThumbnailSet
	err := retry.Do(ctx, r.retry, graph.IsTransient, func(ctx context.Context) error {
		s, err := r.gw.ListThumbnails(ctx, itemID)
		if err != nil {
			return err
		}
		sets = s
		return nil
	})
	if err != nil {
		if errors.Is(err, graph.ErrUnauthorized) || ctx.Err() != nil {
			return "", err
		}
		r.logger.Warn().Err(err).Str("item_id", itemID).Msg("thumbnail lookup failed, using fallback")
		return EscapeAmp(r.fallback), nil
	}

	url := r.fallback
	if len(sets) > 0 && sets[0].Large != "" {
		url = sets[0].Large
	}
	return EscapeAmp(url), nil
}
