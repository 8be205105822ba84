package kit

import (
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
)

type Definition struct{}

func (d *Definition) Kind() string {
	return configstore.KindKit
}

func (d *Definition) DisplayName() string {
	return "Kit"
}

func (d *Definition) ListNoun() string {
	return "forms"
}

func (d *Definition) SupportsTags() bool {
	return true
}

func (d *Definition) NewProvider(creds configstore.Credentials) (registry.Provider, error) {
	return New(configstore.DecodeKitConfig(creds))
}
