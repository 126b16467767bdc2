// Package resolver turns drive items into the URLs a feed item needs: a
// direct-download link and a thumbnail.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/retry"
)

const (
	embedMarker    = "embed"
	downloadMarker = "download"
)

// ErrMalformedLink marks an embed link that lacks the "embed" marker.
var ErrMalformedLink = errors.New("share link is not an embed link")

// Gateway is the subset of the Graph client the resolvers use.
type Gateway interface {
	CreateShareLink(ctx context.Context, itemID, linkType, scope string) (*graph.Permission, error)
	ListPermissions(ctx context.Context, itemID string) ([]graph.Permission, error)
	ListThumbnails(ctx context.Context, itemID string) ([]graph.ThumbnailSet, error)
}

// ShareLink is a resolved link and whether it passed validation.
type ShareLink struct {
	// Embed is the URL returned by the service.
	Embed string
	// Download is the direct-download form, already escaped for XML.
	Download string
	// Malformed is set when Embed did not contain "embed".
	Malformed bool
}

// LinkError is returned when no link could be obtained for an item.
type LinkError struct {
	ItemID string
	Name   string
	Err    error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("could not create share link for %q: %v", e.Name, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// LinkResolver obtains anonymous embed links and converts them to downloads.
type LinkResolver struct {
	gw     Gateway
	retry  retry.Config
	logger zerolog.Logger
}

// NewLinkResolver creates a resolver that retries transient failures per cfg.
func NewLinkResolver(gw Gateway, cfg retry.Config, logger zerolog.Logger) *LinkResolver {
	return &LinkResolver{gw: gw, retry: cfg, logger: logger}
}

// Resolve returns the item's download link. A link without the embed marker
// is logged together with the item's existing share links and still used.
func (r *LinkResolver) Resolve(ctx context.Context, item graph.DriveItem) (ShareLink, error) {
	var perm *graph.Permission
	err := retry.Do(ctx, r.retry, graph.IsTransient, func(ctx context.Context) error {
		p, err := r.gw.CreateShareLink(ctx, item.ID, "embed", "anonymous")
		if err != nil {
			r.logger.Warn().Err(err).Str("video", item.Name).Msg("create link failed")
			return err
		}
		perm = p
		return nil
	})
	if err != nil {
		return ShareLink{}, &LinkError{ItemID: item.ID, Name: item.Name, Err: err}
	}
	if perm.WebURL == "" {
		return ShareLink{}, &LinkError{ItemID: item.ID, Name: item.Name, Err: errors.New("service returned an empty link")}
	}

	link := ShareLink{Embed: perm.WebURL}
	if err := ValidateEmbed(link.Embed); err != nil {
		link.Malformed = true
		r.logger.Warn().
			Str("video", item.Name).
			Str("embed_link", link.Embed).
			Msg("*** ERROR Creating link ***")
		for kind, url := range r.Diagnose(ctx, item.ID) {
			r.logger.Info().Str("type", kind).Str("url", url).Msg("  Potential url")
		}
	}
	link.Download = EscapeAmp(ToDownload(link.Embed))
	return link, nil
}

// Diagnose lists the item's existing share links as (link type, url) pairs.
// The permissions request is made when iteration starts; a failed request is
// logged and ends the sequence. The sequence is single-use: ranging over it a
// second time yields nothing.
func (r *LinkResolver) Diagnose(ctx context.Context, itemID string) iter.Seq2[string, string] {
	var used atomic.Bool
	return func(yield func(string, string) bool) {
		if used.Swap(true) {
			return
		}
		perms, err := r.gw.ListPermissions(ctx, itemID)
		if err != nil {
			r.logger.Error().Err(err).Str("item_id", itemID).Msg("could not list share links")
			return
		}
		for _, p := range perms {
			if !yield(p.LinkType, p.WebURL) {
				return
			}
		}
	}
}

// ValidateEmbed reports ErrMalformedLink when url lacks the embed marker.
func ValidateEmbed(url string) error {
	if !strings.Contains(url, embedMarker) {
		return ErrMalformedLink
	}
	return nil
}

// ToDownload rewrites the first "embed" in url to "download".
func ToDownload(url string) string {
	return strings.Replace(url, embedMarker, downloadMarker, 1)
}

// EscapeAmp replaces every "&" with "&amp;" for use inside XML.
func EscapeAmp(s string) string {
	return strings.ReplaceAll(s, "&", "&amp;")
}
