// Package connectors assembles the supported email marketing providers and
// exposes the factory that turns a stored (kind, credentials) pair into a
// live client.
package connectors

import (
	"fmt"

	"github.com/magnetlab/magnetlab/internal/connectors/activecampaign"
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/kit"
	"github.com/magnetlab/magnetlab/internal/connectors/mailchimp"
	"github.com/magnetlab/magnetlab/internal/connectors/mailerlite"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
)

// New constructs the provider client for kind. Kind matching is exact and
// case-sensitive; anything outside the closed set, including the empty
// string, is rejected here. Credential-shape validation (Mailchimp prefix,
// ActiveCampaign base URL) happens inside the vendor constructors.
func New(kindName string, creds configstore.Credentials) (registry.Provider, error) {
	switch kindName {
	case configstore.KindKit:
		return kit.New(configstore.DecodeKitConfig(creds))
	case configstore.KindMailerLite:
		return mailerlite.New(configstore.DecodeMailerLiteConfig(creds))
	case configstore.KindMailchimp:
		return mailchimp.New(configstore.DecodeMailchimpConfig(creds))
	case configstore.KindActiveCampaign:
		return activecampaign.New(configstore.DecodeActiveCampaignConfig(creds))
	default:
		return nil, fmt.Errorf("unknown email marketing provider: %s", kindName)
	}
}

// NewDefaultRegistry returns a registry populated with every supported
// provider definition in display order.
func NewDefaultRegistry() (*registry.Registry, error) {
	reg := registry.NewRegistry()
	defs := []registry.Definition{
		&kit.Definition{},
		&mailerlite.Definition{},
		&mailchimp.Definition{},
		&activecampaign.Definition{},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
