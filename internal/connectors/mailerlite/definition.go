package mailerlite

import (
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
)

type Definition struct{}

func (d *Definition) Kind() string {
	return configstore.KindMailerLite
}

func (d *Definition) DisplayName() string {
	return "MailerLite"
}

func (d *Definition) ListNoun() string {
	return "groups"
}

func (d *Definition) SupportsTags() bool {
	return false
}

func (d *Definition) NewProvider(creds configstore.Credentials) (registry.Provider, error) {
	return New(configstore.DecodeMailerLiteConfig(creds))
}
