package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const footer = "</channel>\n</rss>"

// ErrClosed is returned by Open after CloseAll.
var ErrClosed = errors.New("feed registry is closed")

// WriteError is an I/O failure on one year's output.
type WriteError struct {
	Year string
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s feed (%s): %v", e.Op, e.Year, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Video is the technical metadata rendered on media:content.
type Video struct {
	Duration int64
	Width    int
	Height   int
}

// Item is one video entry. Link and Thumbnail must already be XML-safe.
type Item struct {
	Title       string
	Description *string
	PubDate     string
	GUID        string
	Size        int64
	Video       *Video
	Link        string
	Thumbnail   string
}

// CreateFunc opens a year's output for writing, truncating any previous run.
type CreateFunc func(path string) (io.WriteCloser, error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCreate replaces the file opener (tests inject failing writers).
func WithCreate(create CreateFunc) RegistryOption {
	return func(r *Registry) {
		r.create = create
	}
}

// Registry owns the open YearFeeds of one run.
type Registry struct {
	dir    string
	lit    Literals
	create CreateFunc

	mu     sync.Mutex
	feeds  map[string]*YearFeed
	failed map[string]error
	closed bool
}

// NewRegistry returns a registry that writes <dir>/<year>.rss files.
func NewRegistry(dir string, lit Literals, opts ...RegistryOption) *Registry {
	r := &Registry{
		dir:    dir,
		lit:    lit,
		create: createFile,
		feeds:  make(map[string]*YearFeed),
		failed: make(map[string]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func createFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// Open returns the year's feed, creating the file and writing its header on
// first use. A year whose file could not be created keeps returning that error.
func (r *Registry) Open(year string) (*YearFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if f, ok := r.feeds[year]; ok {
		return f, nil
	}
	if err, ok := r.failed[year]; ok {
		return nil, err
	}

	path := filepath.Join(r.dir, year+".rss")
	out, err := r.create(path)
	if err != nil {
		werr := &WriteError{Year: year, Path: path, Op: "create", Err: err}
		r.failed[year] = werr
		return nil, werr
	}

	f := &YearFeed{Year: year, Path: path, out: out, w: bufio.NewWriter(out), lit: r.lit}
	if err := f.writeHeader(); err != nil {
		_ = out.Close()
		werr := &WriteError{Year: year, Path: path, Op: "write header of", Err: err}
		r.failed[year] = werr
		return nil, werr
	}

	r.feeds[year] = f
	return f, nil
}

// Years returns the opened years in ascending order.
func (r *Registry) Years() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	years := make([]string, 0, len(r.feeds))
	for y := range r.feeds {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// Feed returns an already opened feed.
func (r *Registry) Feed(year string) (*YearFeed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[year]
	return f, ok
}

// CloseAll writes the footer to and closes every open feed. Each feed is
// attempted regardless of failures on the others. Calling it again is a no-op.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	feeds := make([]*YearFeed, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	r.mu.Unlock()

	sort.Slice(feeds, func(i, j int) bool { return feeds[i].Year < feeds[j].Year })

	var errs []error
	for _, f := range feeds {
		if err := f.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// YearFeed is one year's open output document.
type YearFeed struct {
	Year string
	Path string

	mu     sync.Mutex
	out    io.WriteCloser
	w      *bufio.Writer
	lit    Literals
	items  int
	err    error
	closed bool
}

// Items is the number of items written so far.
func (f *YearFeed) Items() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items
}

// Err is the first write failure on this feed, if any.
func (f *YearFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// WriteItem appends one item block and flushes it to the file, so the file is
// complete up to the last item even if the run stops here. After a failure
// the feed rejects further items with the original error.
func (f *YearFeed) WriteItem(it Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.closed {
		return &WriteError{Year: f.Year, Path: f.Path, Op: "write to closed", Err: os.ErrClosed}
	}

	f.writeItem(it)
	if err := f.w.Flush(); err != nil {
		f.err = &WriteError{Year: f.Year, Path: f.Path, Op: "write item to", Err: err}
		return f.err
	}
	f.items++
	return nil
}

func (f *YearFeed) writeHeader() error {
	lines := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss xmlns:media="http://search.yahoo.com/mrss/" version="2.0">`,
		`<channel>`,
		`  <title>` + f.Year + `-video-list</title>`,
		`  <link />`,
		`  <description>` + f.lit.DescriptionPrefix + f.Year + `</description>`,
		`  <language>` + f.lit.Language + `</language>`,
		`  <pubDate>` + f.lit.PubDate + `</pubDate>`,
		`  <image>`,
		`    <title>` + f.Year + f.lit.ImageTitleSuffix + `</title>`,
		`    <url>` + f.lit.ImageURL + `</url>`,
		`    <width>-1</width>`,
		`    <height>-1</height>`,
		`  </image>`,
	}
	for _, l := range lines {
		f.line(l)
	}
	return f.w.Flush()
}

func (f *YearFeed) writeItem(it Item) {
	title := escapeText(it.Title)
	desc := f.lit.MissingDescription
	if it.Description != nil {
		desc = escapeText(*it.Description)
	}
	size := strconv.FormatInt(it.Size, 10)

	f.line(`  <item>`)
	f.line(`    <title>` + title + `</title>`)
	f.line(`    <description>` + desc + `</description>`)
	f.line(`    <pubDate>` + escapeText(it.PubDate) + `</pubDate>`)
	f.line(`    <guid isPermaLink="false">` + escapeText(it.GUID) + `</guid>`)
	if v := it.Video; v != nil {
		f.line(`    <media:content duration="` + strconv.FormatInt(v.Duration, 10) +
			`" fileSize="` + size +
			`" height="` + strconv.Itoa(v.Height) +
			`" type="video/mp4" width="` + strconv.Itoa(v.Width) +
			`" isDefault="true" url="` + it.Link + `">`)
	} else {
		f.line(`    <media:content fileSize="` + size + `" type="video/mp4" isDefault="true" url="` + it.Link + `">`)
	}
	f.line(`      <media:description>` + desc + `</media:description>`)
	f.line(`      <media:keywords>` + f.lit.Keywords + `</media:keywords>`)
	f.line(`      <media:thumbnail url="` + it.Thumbnail + `" />`)
	f.line(`      <media:title>` + title + `</media:title>`)
	f.line(`    </media:content>`)
	f.line(`  </item>`)
}

// line buffers s plus a newline; errors surface on the next Flush.
func (f *YearFeed) line(s string) {
	_, _ = f.w.WriteString(s)
	_ = f.w.WriteByte('\n')
}

func (f *YearFeed) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	if _, err := f.w.WriteString(footer); err != nil {
		errs = append(errs, err)
	} else if err := f.w.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := f.out.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &WriteError{Year: f.Year, Path: f.Path, Op: "close", Err: errors.Join(errs...)}
	}
	return nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
