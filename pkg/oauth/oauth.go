// Package oauth provides OAuth 2.0 utilities for vidfeed.
//
// Sign-in uses the device authorization grant against the Microsoft identity
// platform: the user opens a verification page, types a short code, and the
// CLI polls for the token. Nothing is written to disk.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const defaultAuthority = "https://login.microsoftonline.com"

// ErrAuthentication wraps every failure to obtain a token.
var ErrAuthentication = errors.New("authentication failed")

// Config identifies the registered application and what it asks for.
type Config struct {
	ClientID  string
	Tenant    string
	Authority string
	Scopes    []string
}

// MicrosoftOAuthConfig returns a config for the public Microsoft identity
// platform. An empty tenant means "common" (work and personal accounts).
func MicrosoftOAuthConfig(clientID, tenant string, scopes []string) Config {
	if tenant == "" {
		tenant = "common"
	}
	return Config{
		ClientID:  clientID,
		Tenant:    tenant,
		Authority: defaultAuthority,
		Scopes:    scopes,
	}
}

// Validate reports missing fields.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("oauth: client ID is required")
	case c.Tenant == "":
		return errors.New("oauth: tenant is required")
	case c.Authority == "":
		return errors.New("oauth: authority is required")
	case len(c.Scopes) == 0:
		return errors.New("oauth: at least one scope is required")
	}
	return nil
}

func (c Config) endpoint() oauth2.Endpoint {
	base := strings.TrimRight(c.Authority, "/") + "/" + c.Tenant + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// Prompt tells the user where to sign in.
type Prompt func(verificationURI, userCode string)

// Flow runs the device authorization grant.
type Flow struct {
	config     Config
	oauth      *oauth2.Config
	httpClient *http.Client
	prompt     Prompt
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithHTTPClient sets the client used to reach the identity platform.
func WithHTTPClient(client *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = client }
}

// WithPrompt sets how the verification URI and user code are shown.
func WithPrompt(p Prompt) FlowOption {
	return func(f *Flow) { f.prompt = p }
}

// NewFlow creates a device code flow for config. Nothing is sent until
// Authenticate is called.
func NewFlow(config Config, opts ...FlowOption) *Flow {
	f := &Flow{
		config: config,
		oauth: &oauth2.Config{
			ClientID: config.ClientID,
			Endpoint: config.endpoint(),
			Scopes:   config.Scopes,
		},
		httpClient: http.DefaultClient,
		prompt:     func(string, string) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// Authenticate signs the user in and returns a token that includes a
// refresh token when the offline_access scope was requested.
func (f *Flow) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	if err := f.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	ctx = f.context(ctx)

	da, err := f.oauth.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %v", ErrAuthentication, err)
	}

	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	f.prompt(uri, da.UserCode)

	token, err := f.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return token, nil
}

// TokenSource returns a source that hands out token until it expires and
// then refreshes it.
func (f *Flow) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, f.oauth.TokenSource(f.context(ctx), token))
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func (f *Flow) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	expired := &oauth2.Token{RefreshToken: refreshToken}
	token, err := f.oauth.TokenSource(f.context(ctx), expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %v", ErrAuthentication, err)
	}
	return token, nil
}
