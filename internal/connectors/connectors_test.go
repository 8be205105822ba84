package connectors

import (
	"strings"
	"testing"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
)

func TestNewBuildsEachKnownKind(t *testing.T) {
	creds := map[string]configstore.Credentials{
		configstore.KindKit:        {APIKey: "k"},
		configstore.KindMailerLite: {APIKey: "k"},
		configstore.KindMailchimp: {
			APIKey:   "k",
			Metadata: map[string]string{configstore.MetadataServerPrefix: "us21"},
		},
		configstore.KindActiveCampaign: {
			APIKey:   "k",
			Metadata: map[string]string{configstore.MetadataBaseURL: "https://acct.api-us1.com"},
		},
	}
	for _, kind := range configstore.Kinds() {
		p, err := New(kind, creds[kind])
		if err != nil {
			t.Fatalf("New(%q) error: %v", kind, err)
		}
		if p.Kind() != kind {
			t.Fatalf("New(%q) returned provider of kind %q", kind, p.Kind())
		}
	}
}

func TestNewRejectsUnknownKinds(t *testing.T) {
	for _, kind := range []string{"", "Kit", "KIT", "mail", "hubspot", " kit"} {
		_, err := New(kind, configstore.Credentials{APIKey: "k"})
		if err == nil {
			t.Errorf("New(%q): expected error", kind)
			continue
		}
		if !strings.Contains(err.Error(), "unknown email marketing provider") {
			t.Errorf("New(%q): unexpected error %v", kind, err)
		}
	}
}

func TestNewPropagatesConfigErrors(t *testing.T) {
	// Known kind, invalid credential shape.
	if _, err := New(configstore.KindMailchimp, configstore.Credentials{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing server prefix")
	}
	if _, err := New(configstore.KindActiveCampaign, configstore.Credentials{
		APIKey:   "k",
		Metadata: map[string]string{configstore.MetadataBaseURL: "https://example.com"},
	}); err == nil {
		t.Fatal("expected error for invalid base URL")
	}
}

func TestNewDefaultRegistryContainsAllKindsInOrder(t *testing.T) {
	reg, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry error: %v", err)
	}
	defs := reg.All()
	kinds := configstore.Kinds()
	if len(defs) != len(kinds) {
		t.Fatalf("expected %d definitions, got %d", len(kinds), len(defs))
	}
	for i, def := range defs {
		if def.Kind() != kinds[i] {
			t.Fatalf("defs[%d] = %q, want %q", i, def.Kind(), kinds[i])
		}
	}
}
