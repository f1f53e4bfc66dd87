package domain

import "time"

// TokenPair is an OAuth2 access/refresh token pair issued by the provider.
// A pair is always replaced wholesale on refresh, never field by field, so a
// stored credential never mixes tokens from two different grants.
type TokenPair struct {
	AccessToken  string    `bson:"access_token"  json:"access_token"`
	RefreshToken string    `bson:"refresh_token" json:"refresh_token"`
	ExpiresAt    time.Time `bson:"expires_at"    json:"expires_at"`
}

// Expired reports whether the access token must no longer be presented to the
// provider API.
func (t *TokenPair) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Credential holds a registered client's provider app credentials together
// with its current token pair. Token is nil until the first authorization
// callback completes.
type Credential struct {
	ClientID     string     `bson:"_id"             json:"client_id"`
	ClientSecret string     `bson:"client_secret"   json:"client_secret"`
	Token        *TokenPair `bson:"token,omitempty" json:"token,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"      json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"      json:"updated_at"`
}

// Authorized reports whether the client has completed the OAuth2 handshake at
// least once, i.e. whether a refresh token exists to mint new access tokens.
func (c *Credential) Authorized() bool {
	return c.Token != nil && c.Token.RefreshToken != ""
}
