package registry

import (
	"context"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
)

// List is a destination collection a contact can be added to. Vendors call it
// a form (Kit), a group (MailerLite), or a list (Mailchimp, ActiveCampaign).
// IDs are stringified regardless of the vendor's native type.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tag is a label applied to a contact after subscription. Tag identity is
// vendor-specific: Mailchimp exposes no stable tag ID, so there both ID and
// Name carry the tag's name. Treat ID as an opaque handle.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubscribeParams is the unit of work for one subscribe attempt.
type SubscribeParams struct {
	ListID    string
	Email     string
	FirstName string
	TagID     string
}

// SubscribeResult reports the outcome of one subscribe attempt. Success alone
// decides whether the contact landed on the list: Success=true with a
// non-empty Error means the list add worked but the follow-up tag application
// failed, which callers must not treat as a failure.
type SubscribeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Provider is the capability contract every vendor client implements.
type Provider interface {
	// Kind returns the provider kind constant (configstore.Kind*).
	Kind() string

	// ValidateCredentials issues a minimal read-only request and reports
	// whether it succeeded. It never returns an error: any non-2xx status or
	// transport failure yields false.
	ValidateCredentials(ctx context.Context) bool

	// Lists fetches every page of the vendor's list-like resource.
	Lists(ctx context.Context) ([]List, error)

	// Tags fetches the vendor's tags. listID scopes the lookup where the
	// vendor requires it (Mailchimp); vendors without a tag concept return an
	// empty slice without a network call.
	Tags(ctx context.Context, listID string) ([]Tag, error)

	// Subscribe adds or updates a contact on the given list and optionally
	// applies a tag. It never returns a Go error: every failure mode resolves
	// into the SubscribeResult.
	Subscribe(ctx context.Context, params SubscribeParams) SubscribeResult
}

// Definition describes a provider kind and constructs its clients.
type Definition interface {
	Kind() string
	DisplayName() string

	// ListNoun is the vendor's own word for a subscribable collection,
	// plural (e.g. "forms", "groups", "lists").
	ListNoun() string

	// SupportsTags reports whether the vendor can tag subscribers. The
	// settings UI hides tag selection when false.
	SupportsTags() bool

	NewProvider(creds configstore.Credentials) (Provider, error)
}
