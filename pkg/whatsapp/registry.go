package whatsapp

import (
	"fmt"
)

// Registry resolves the active provider from live settings. Resolution
// happens per call so a config reload switches providers without a restart.
type Registry struct {
	settings func() Settings
}

func NewRegistry(settings func() Settings) *Registry {
	return &Registry{settings: settings}
}

// Active builds the provider named by the current settings.
func (r *Registry) Active() (Provider, error) {
	s := r.settings()

	switch s.Provider {
	case "cloud":
		if s.Cloud.Token == "" || s.Cloud.PhoneNumberID == "" {
			return nil, fmt.Errorf("cloud provider requires token and phone number ID")
		}
		return NewCloudProvider(s.Cloud, s.Timeout), nil
	case "waha":
		if s.Waha.BaseURL == "" {
			return nil, fmt.Errorf("waha provider requires base URL")
		}
		return NewWahaProvider(s.Waha, s.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown whatsapp provider: %q", s.Provider)
	}
}
