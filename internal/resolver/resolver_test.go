package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/retry"
)

// fakeGateway scripts Graph responses per call.
type fakeGateway struct {
	linkErrs    []error
	linkURL     string
	linkCalls   int
	perms       []graph.Permission
	permsErr    error
	permsCalls  int
	thumbs      []graph.ThumbnailSet
	thumbsErr   error
	thumbsCalls int
}

func (g *fakeGateway) CreateShareLink(ctx context.Context, itemID, linkType, scope string) (*graph.Permission, error) {
	g.linkCalls++
	if linkType != "embed" || scope != "anonymous" {
		return nil, errors.New("unexpected link request " + linkType + "/" + scope)
	}
	if len(g.linkErrs) > 0 {
		err := g.linkErrs[0]
		g.linkErrs = g.linkErrs[1:]
		return nil, err
	}
	return &graph.Permission{LinkType: "embed", WebURL: g.linkURL}, nil
}

func (g *fakeGateway) ListPermissions(ctx context.Context, itemID string) ([]graph.Permission, error) {
	g.permsCalls++
	return g.perms, g.permsErr
}

func (g *fakeGateway) ListThumbnails(ctx context.Context, itemID string) ([]graph.ThumbnailSet, error) {
	g.thumbsCalls++
	return g.thumbs, g.thumbsErr
}

func quickRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func video() graph.DriveItem {
	return graph.DriveItem{ID: "vid-1", Name: "beach.mp4"}
}

func TestAC300_Link_RewritesEmbedToDownloadAndEscapes(t *testing.T) {
	gw := &fakeGateway{linkURL: "https://onedrive.live.com/embed?id=abc&resid=xyz"}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	link, err := r.Resolve(context.Background(), video())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Download != "https://onedrive.live.com/download?id=abc&amp;resid=xyz" {
		t.Errorf("user should get the escaped download link, got %q", link.Download)
	}
	if link.Malformed {
		t.Error("a link containing embed should not be flagged")
	}
	if gw.permsCalls != 0 {
		t.Error("diagnostics should only run for malformed links")
	}
}

func TestAC301_Link_MalformedLinkIsDiagnosedAndKept(t *testing.T) {
	gw := &fakeGateway{
		linkURL: "https://1drv.ms/v/s!abc&x=1",
		perms: []graph.Permission{
			{LinkType: "view", WebURL: "https://1drv.ms/v/s!abc"},
			{LinkType: "embed", WebURL: "https://onedrive.live.com/embed?id=abc"},
		},
	}
	var logs strings.Builder
	r := NewLinkResolver(gw, quickRetry(), zerolog.New(&logs))

	link, err := r.Resolve(context.Background(), video())
	if err != nil {
		t.Fatalf("a malformed link should not be fatal, got %v", err)
	}
	if !link.Malformed {
		t.Error("link without embed marker should be flagged")
	}
	if link.Download != "https://1drv.ms/v/s!abc&amp;x=1" {
		t.Errorf("malformed link should be used as-is (escaped), got %q", link.Download)
	}
	if gw.permsCalls != 1 {
		t.Errorf("diagnostics should list permissions once, got %d", gw.permsCalls)
	}
	if !strings.Contains(logs.String(), "https://onedrive.live.com/embed?id=abc") {
		t.Error("diagnostics should log every potential url")
	}
}

func TestAC302_Link_RetriesTransientErrors(t *testing.T) {
	gw := &fakeGateway{
		linkURL:  "https://onedrive.live.com/embed?id=abc",
		linkErrs: []error{&graph.TransientError{StatusCode: 429}, &graph.TransientError{StatusCode: 503}},
	}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	link, err := r.Resolve(context.Background(), video())
	if err != nil {
		t.Fatalf("transient failures within the retry bound should recover, got %v", err)
	}
	if gw.linkCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", gw.linkCalls)
	}
	if !strings.Contains(link.Download, "download") {
		t.Errorf("unexpected link %q", link.Download)
	}
}

func TestAC303_Link_FailsExplicitlyAfterRetries(t *testing.T) {
	throttled := &graph.TransientError{StatusCode: 429}
	gw := &fakeGateway{linkErrs: []error{throttled, throttled, throttled, throttled}}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	link, err := r.Resolve(context.Background(), video())

	var linkErr *LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("exhausted retries should return a LinkError, got %v", err)
	}
	if linkErr.Name != "beach.mp4" {
		t.Errorf("LinkError should name the video, got %q", linkErr.Name)
	}
	if link.Download != "" {
		t.Error("no link should be returned on failure")
	}
	if gw.linkCalls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", gw.linkCalls)
	}
}

func TestAC304_Link_CredentialErrorIsNotRetried(t *testing.T) {
	gw := &fakeGateway{linkErrs: []error{graph.ErrUnauthorized}}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	_, err := r.Resolve(context.Background(), video())
	if !errors.Is(err, graph.ErrUnauthorized) {
		t.Errorf("credential failure should surface, got %v", err)
	}
	if gw.linkCalls != 1 {
		t.Errorf("credential failure should not be retried, got %d calls", gw.linkCalls)
	}
}

func TestAC305_Link_EmptyURLIsAFailure(t *testing.T) {
	gw := &fakeGateway{linkURL: ""}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	if _, err := r.Resolve(context.Background(), video()); err == nil {
		t.Error("an empty link must never be accepted")
	}
}

func TestToDownload_RoundTrip(t *testing.T) {
	tests := []string{
		"https://onedrive.live.com/embed?id=1",
		"https://onedrive.live.com/embed?cid=2&resid=3&authkey=4",
	}
	for _, in := range tests {
		out := ToDownload(in)
		if strings.Contains(out, "embed") {
			t.Errorf("ToDownload(%q) = %q still contains embed", in, out)
		}
		if !strings.Contains(out, "download") {
			t.Errorf("ToDownload(%q) = %q lacks download", in, out)
		}
	}
}

func TestToDownload_ReplacesFirstOccurrenceOnly(t *testing.T) {
	got := ToDownload("https://x/embed?name=embed.mp4")
	if got != "https://x/download?name=embed.mp4" {
		t.Errorf("only the first embed should be rewritten, got %q", got)
	}
}

func TestEscapeAmp_AppliesAfterRewrite(t *testing.T) {
	got := EscapeAmp(ToDownload("https://x/embed?a=1&b=2&c=3"))
	if got != "https://x/download?a=1&amp;b=2&amp;c=3" {
		t.Errorf("every & should be escaped, got %q", got)
	}
	if strings.Count(got, "&") != strings.Count(got, "&amp;") {
		t.Error("no bare & should remain")
	}
}

func TestDiagnose_IsLazyAndStoppable(t *testing.T) {
	gw := &fakeGateway{perms: []graph.Permission{
		{LinkType: "view", WebURL: "a"},
		{LinkType: "edit", WebURL: "b"},
	}}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	seq := r.Diagnose(context.Background(), "vid-1")
	if gw.permsCalls != 0 {
		t.Fatal("Diagnose should not call the service before iteration")
	}

	var kinds []string
	for kind := range seq {
		kinds = append(kinds, kind)
		break
	}
	if len(kinds) != 1 || kinds[0] != "view" {
		t.Errorf("expected to stop after the first pair, got %v", kinds)
	}
}

func TestDiagnose_IsSingleUse(t *testing.T) {
	gw := &fakeGateway{perms: []graph.Permission{{LinkType: "view", WebURL: "a"}}}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	seq := r.Diagnose(context.Background(), "vid-1")
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}

	if first != 1 || second != 0 {
		t.Errorf("only the first iteration should yield, got %d then %d pairs", first, second)
	}
	if gw.permsCalls != 1 {
		t.Errorf("permissions should be fetched once, got %d calls", gw.permsCalls)
	}
}

func TestDiagnose_FetchFailureEndsSequence(t *testing.T) {
	gw := &fakeGateway{permsErr: errors.New("boom")}
	r := NewLinkResolver(gw, quickRetry(), zerolog.Nop())

	n := 0
	for range r.Diagnose(context.Background(), "vid-1") {
		n++
	}
	if n != 0 {
		t.Errorf("a failed listing should yield nothing, got %d pairs", n)
	}
}

func TestAC310_Thumbnail_UsesFirstLargeURL(t *testing.T) {
	gw := &fakeGateway{thumbs: []graph.ThumbnailSet{
		{Large: "https://thumbs/1?a=1&b=2"},
		{Large: "https://thumbs/2"},
	}}
	r := NewThumbnailResolver(gw, quickRetry(), "http://fallback", zerolog.Nop())

	got, err := r.Resolve(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://thumbs/1?a=1&amp;b=2" {
		t.Errorf("user should see the first set's large thumbnail, got %q", got)
	}
}

func TestAC311_Thumbnail_FallsBackWhenNoneExist(t *testing.T) {
	gw := &fakeGateway{}
	r := NewThumbnailResolver(gw, quickRetry(), "http://fallback/a.jpeg?x=1&y=2", zerolog.Nop())

	got, err := r.Resolve(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://fallback/a.jpeg?x=1&amp;y=2" {
		t.Errorf("videos without thumbnails should get the fallback, got %q", got)
	}
}

func TestAC312_Thumbnail_FallsBackOnServiceFailure(t *testing.T) {
	gw := &fakeGateway{thumbsErr: &graph.TransientError{StatusCode: 503}}
	r := NewThumbnailResolver(gw, quickRetry(), "http://fallback", zerolog.Nop())

	got, err := r.Resolve(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("thumbnail failures should not be fatal, got %v", err)
	}
	if got != "http://fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	if gw.thumbsCalls != 3 {
		t.Errorf("transient thumbnail failures should be retried, got %d calls", gw.thumbsCalls)
	}
}

func TestAC313_Thumbnail_CredentialErrorSurfaces(t *testing.T) {
	gw := &fakeGateway{thumbsErr: graph.ErrUnauthorized}
	r := NewThumbnailResolver(gw, quickRetry(), "http://fallback", zerolog.Nop())

	if _, err := r.Resolve(context.Background(), "vid-1"); !errors.Is(err, graph.ErrUnauthorized) {
		t.Errorf("credential failures should abort, got %v", err)
	}
}
