package mailchimp

import (
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
)

type Definition struct{}

func (d *Definition) Kind() string {
	return configstore.KindMailchimp
}

func (d *Definition) DisplayName() string {
	return "Mailchimp"
}

func (d *Definition) ListNoun() string {
	return "lists"
}

func (d *Definition) SupportsTags() bool {
	return true
}

func (d *Definition) NewProvider(creds configstore.Credentials) (registry.Provider, error) {
	return New(configstore.DecodeMailchimpConfig(creds))
}
