package fitbit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	fitsync "github.com/pilab-dev/fitsync"
	"github.com/pilab-dev/fitsync/domain"
)

const (
	// DefaultAuthURL and DefaultTokenURL are the provider's OAuth2 endpoints.
	DefaultAuthURL  = "https://www.fitbit.com/oauth2/authorize"
	DefaultTokenURL = "https://api.fitbit.com/oauth2/token"
)

// DefaultScopes is the full scope set requested at registration.
var DefaultScopes = []string{
	"activity", "cardio_fitness", "electrocardiogram", "heartrate",
	"location", "nutrition", "oxygen_saturation", "profile",
	"respiratory_rate", "settings", "sleep", "social", "temperature",
	"weight",
}

// Authorizer performs the authorization-code and refresh-token exchanges
// with the provider's OAuth2 server. Each registered client brings its own
// app id and secret, so the oauth2 config is built per call.
type Authorizer struct {
	authURL    string
	tokenURL   string
	scopes     []string
	httpClient *http.Client
}

func NewAuthorizer(authURL, tokenURL string, scopes []string) *Authorizer {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &Authorizer{
		authURL:  authURL,
		tokenURL: tokenURL,
		scopes:   scopes,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *Authorizer) config(cred *domain.Credential, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       a.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.authURL,
			TokenURL: a.tokenURL,
			// The provider requires client credentials in the
			// Authorization header of token requests.
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthCodeURL builds the consent-page URL the client is redirected to when
// registering.
func (a *Authorizer) AuthCodeURL(cred *domain.Credential, redirectURI, state string) string {
	return a.config(cred, redirectURI).AuthCodeURL(state)
}

// Exchange trades an authorization code for the client's first token pair.
func (a *Authorizer) Exchange(ctx context.Context, cred *domain.Credential, code, redirectURI string) (*domain.TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.config(cred, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return tokenPair(tok), nil
}

// Refresh exchanges the credential's refresh token for a new pair. The
// provider rotates refresh tokens: the returned pair replaces the stored one
// wholesale.
func (a *Authorizer) Refresh(ctx context.Context, cred *domain.Credential) (*domain.TokenPair, error) {
	if !cred.Authorized() {
		return nil, fitsync.ErrNotRegistered
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	source := a.config(cred, "").TokenSource(ctx, &oauth2.Token{
		RefreshToken: cred.Token.RefreshToken,
	})
	tok, err := source.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return tokenPair(tok), nil
}

func tokenPair(tok *oauth2.Token) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// classifyTokenError maps an oauth2 retrieval failure onto the fitsync error
// taxonomy: 4xx from the token endpoint means the grant itself is invalid,
// anything else is transient.
func classifyTokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return fmt.Errorf("%w: %v", fitsync.ErrUnavailable, err)
	}
	switch {
	case rerr.Response.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", fitsync.ErrRateLimited, rerr.Response.StatusCode)
	case rerr.Response.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", fitsync.ErrUnavailable, rerr.Response.StatusCode)
	default:
		return fmt.Errorf("%w: status %d: %s", fitsync.ErrTokenRefreshRejected,
			rerr.Response.StatusCode, rerr.Body)
	}
}
