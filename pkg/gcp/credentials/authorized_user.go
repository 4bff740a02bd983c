package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// AuthorizedUser is the refresh-token credential written by
// `gcloud auth application-default login`.
type AuthorizedUser struct {
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	RefreshToken   string `json:"refresh_token"`
	TokenURI       string `json:"token_uri,omitempty"`
	QuotaProjectID string `json:"quota_project_id,omitempty"`
}

func (u *AuthorizedUser) String() string {
	return fmt.Sprintf("authorized_user{client_id=%s}", u.ClientID)
}

func (u *AuthorizedUser) validate() error {
	missing := missingFields(map[string]string{
		"client_id":     u.ClientID,
		"client_secret": u.ClientSecret,
		"refresh_token": u.RefreshToken,
	})
	if len(missing) > 0 {
		return fmt.Errorf("authorized_user is missing %v", missing)
	}
	return nil
}

func (u *AuthorizedUser) tokenURL() string {
	if u.TokenURI != "" {
		return u.TokenURI
	}
	return DefaultTokenURL
}

func (u *AuthorizedUser) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     u.ClientID,
		ClientSecret: u.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  u.tokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// WithHTTPClient sets the client used for the refresh exchange.
func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// AccessToken exchanges the refresh token for a fresh access token.
// Every call performs one POST; nothing is cached.
func (u *AuthorizedUser) AccessToken(ctx context.Context) (string, error) {
	token, err := u.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: u.RefreshToken}).Token()
	if err != nil {
		return "", u.exchangeError(err)
	}
	return token.AccessToken, nil
}

func (u *AuthorizedUser) exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &HTTPError{
			StatusCode: retrieveErr.Response.StatusCode,
			Status:     retrieveErr.Response.Status,
			URL:        u.tokenURL(),
			Body:       string(retrieveErr.Body),
		}
	}
	return newError(KindHTTP, u.tokenURL(), "refresh token exchange failed", err)
}
