package oauth

import (
	"golang.org/x/oauth2"
)

// Endpoint names the provider-family OAuth URLs. DeviceAuthURL is
// required for the device-code flow; AuthURL is required for the
// authorization-code flow. A provider (iFlow, Qwen) may set both;
// Manager's re-acquisition runs exactly one of the two flows, chosen by
// EnsureOptions.UseDeviceFlow, and does not fall back to the other when
// it fails.
type Endpoint struct {
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
}

// NewConfig builds an oauth2.Config for one provider/alias.
func NewConfig(ep Endpoint, clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       ep.AuthURL,
			TokenURL:      ep.TokenURL,
			DeviceAuthURL: ep.DeviceAuthURL,
		},
	}
}
