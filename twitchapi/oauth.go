package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// tokenEndpoint pins client credentials to the form body. twitch.Endpoint leaves
// AuthStyle unset, which makes x/oauth2 try Basic auth first and retry with the form.
var tokenEndpoint = oauth2.Endpoint{
	AuthURL:   twitch.Endpoint.AuthURL,
	TokenURL:  twitch.Endpoint.TokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuthConfig builds the authorization-code config used to (re)authorize the broadcaster.
// scopes may be space or comma separated.
func OAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(strings.ReplaceAll(scopes, ",", " ")),
		Endpoint:     tokenEndpoint,
	}
}

// BuildAuthorizeURL constructs the user authorization URL for OAuth code grant.
func BuildAuthorizeURL(clientID, redirectURI, scopes, state string) (string, error) {
	if clientID == "" || redirectURI == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return OAuthConfig(clientID, "", redirectURI, scopes).AuthCodeURL(state), nil
}

// ExchangeAuthCode exchanges an authorization code for access & refresh tokens.
// hc may be nil to use http.DefaultClient.
func ExchangeAuthCode(ctx context.Context, hc *http.Client, clientID, clientSecret, code, redirectURI string) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" || code == "" || redirectURI == "" {
		return nil, errors.New("missing required parameter for auth code exchange")
	}
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return OAuthConfig(clientID, clientSecret, redirectURI, "").Exchange(ctx, code)
}
