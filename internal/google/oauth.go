package google

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarScope grants full access to the user's calendars. It is the only
// scope this service requests.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// OAuthConfig returns the OAuth2 configuration for the Google authorization
// flow. The redirect URL must match the /auth/callback route registered with
// the OAuth client.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{CalendarScope},
	}
}

// AuthCodeURL builds the provider authorization URL for the given state.
// Offline access is requested so a refresh token is issued, and consent is
// forced so the refresh token is returned on repeat authorizations too.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}
