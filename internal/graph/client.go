package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultTimeout     = 30 * time.Second
	defaultChildrenCap = 600
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout bounds every individual request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithChildrenCap sets the $top used when listing a folder's children.
func WithChildrenCap(n int) ClientOption {
	return func(c *Client) {
		c.childrenCap = n
	}
}

// WithLogger attaches a logger for request-level diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a Microsoft Graph API client. Construct one per run and pass it
// to the components that need it.
type Client struct {
	tokens      oauth2.TokenSource
	baseURL     string
	httpClient  HTTPClient
	timeout     time.Duration
	limiter     *rate.Limiter
	childrenCap int
	logger      zerolog.Logger
}

// NewClient creates a new Graph client that authenticates with tokens.
func NewClient(tokens oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		tokens:      tokens,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		childrenCap: defaultChildrenCap,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	return &user, nil
}

// ListEvents returns the user's calendar events, newest-created first.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	query := url.Values{}
	query.Set("$select", "subject,organizer,start,end")
	query.Set("$orderby", "createdDateTime DESC")

	body, err := c.doRequest(ctx, http.MethodGet, "/me/events", query, nil)
	if err != nil {
		return nil, err
	}

	var response eventsResponse
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse events response: %w", err)
	}

	events := make([]Event, 0, len(response.Value))
	for _, e := range response.Value {
		events = append(events, Event{
			Subject:   e.Subject,
			Organizer: e.Organizer.EmailAddress.Name,
			Start:     e.Start,
			End:       e.End,
		})
	}
	return events, nil
}

// ListRootItems returns the items at the root of the user's drive.
func (c *Client) ListRootItems(ctx context.Context) ([]DriveItem, error) {
	return c.listItems(ctx, "/me/drive/root/children", nil)
}

// ListChildren returns up to the configured cap of children of itemID,
// newest-created first. Further pages are not requested.
func (c *Client) ListChildren(ctx context.Context, itemID string) ([]DriveItem, error) {
	query := url.Values{}
	query.Set("$top", fmt.Sprintf("%d", c.childrenCap))

	items, err := c.listItems(ctx, itemPath(itemID, "children"), query)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(items, func(a, b DriveItem) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return items, nil
}

// CreateShareLink creates (or returns the existing) sharing link of the
// given type and scope, e.g. "embed" and "anonymous".
func (c *Client) CreateShareLink(ctx context.Context, itemID, linkType, scope string) (*Permission, error) {
	payload, err := json.Marshal(createLinkRequest{Type: linkType, Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("failed to encode createLink request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, itemPath(itemID, "createLink"), nil, payload)
	if err != nil {
		return nil, err
	}

	var perm permissionResponse
	if err := decodeJSON(body, &perm); err != nil {
		return nil, fmt.Errorf("failed to parse createLink response: %w", err)
	}
	p := perm.toPermission()
	return &p, nil
}

// ListPermissions returns the sharing links present on an item. Permissions
// that are not links (owner grants, invitations) are omitted.
func (c *Client) ListPermissions(ctx context.Context, itemID string) ([]Permission, error) {
	body, err := c.doRequest(ctx, http.MethodGet, itemPath(itemID, "permissions"), nil, nil)
	if err != nil {
		return nil, err
	}

	var response permissionsResponse
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse permissions response: %w", err)
	}

	perms := make([]Permission, 0, len(response.Value))
	for _, p := range response.Value {
		if p.Link == nil {
			continue
		}
		perms = append(perms, p.toPermission())
	}
	return perms, nil
}

// ListThumbnails returns the thumbnail sets of an item.
func (c *Client) ListThumbnails(ctx context.Context, itemID string) ([]ThumbnailSet, error) {
	body, err := c.doRequest(ctx, http.MethodGet, itemPath(itemID, "thumbnails"), nil, nil)
	if err != nil {
		return nil, err
	}

	var response thumbnailsResponse
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse thumbnails response: %w", err)
	}

	sets := make([]ThumbnailSet, 0, len(response.Value))
	for _, s := range response.Value {
		sets = append(sets, ThumbnailSet{
			ID:     s.ID,
			Large:  s.Large.URL,
			Medium: s.Medium.URL,
			Small:  s.Small.URL,
		})
	}
	return sets, nil
}

func (c *Client) listItems(ctx context.Context, path string, query url.Values) ([]DriveItem, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	var response driveItemsResponse
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse drive items response: %w", err)
	}

	items := make([]DriveItem, 0, len(response.Value))
	for _, it := range response.Value {
		items = append(items, it.toDriveItem())
	}
	return items, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	requestID := uuid.NewString()
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("client-request-id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		apiErr := c.handleAPIError(resp, body)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("client_request_id", requestID).
			Err(apiErr).
			Msg("graph request failed")
		return nil, apiErr
	}

	return body, nil
}

func itemPath(itemID, rel string) string {
	return "/me/drive/items/" + url.PathEscape(itemID) + "/" + rel
}

func decodeJSON(body []byte, v any) error {
	return json.Unmarshal(body, v)
}

// API response types (private - implementation detail)

type createLinkRequest struct {
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

type eventsResponse struct {
	Value []struct {
		Subject   string `json:"subject"`
		Organizer struct {
			EmailAddress struct {
				Name    string `json:"name"`
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"organizer"`
		Start EventDateTime `json:"start"`
		End   EventDateTime `json:"end"`
	} `json:"value"`
}

type driveItemResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Size            int64       `json:"size"`
	Description     *string     `json:"description"`
	CreatedDateTime time.Time   `json:"createdDateTime"`
	Folder          *struct{}   `json:"folder"`
	Video           *VideoFacet `json:"video"`
}

func (r driveItemResponse) toDriveItem() DriveItem {
	return DriveItem{
		ID:          r.ID,
		Name:        r.Name,
		Size:        r.Size,
		Description: r.Description,
		CreatedAt:   r.CreatedDateTime,
		IsFolder:    r.Folder != nil,
		Video:       r.Video,
	}
}

type driveItemsResponse struct {
	Value []driveItemResponse `json:"value"`
}

type permissionResponse struct {
	ID   string `json:"id"`
	Link *struct {
		Type   string `json:"type"`
		Scope  string `json:"scope"`
		WebURL string `json:"webUrl"`
	} `json:"link"`
}

func (r permissionResponse) toPermission() Permission {
	p := Permission{ID: r.ID}
	if r.Link != nil {
		p.LinkType = r.Link.Type
		p.Scope = r.Link.Scope
		p.WebURL = r.Link.WebURL
	}
	return p
}

type permissionsResponse struct {
	Value []permissionResponse `json:"value"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnailsResponse struct {
	Value []struct {
		ID     string    `json:"id"`
		Large  thumbnail `json:"large"`
		Medium thumbnail `json:"medium"`
		Small  thumbnail `json:"small"`
	} `json:"value"`
}
