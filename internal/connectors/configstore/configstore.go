// Package configstore defines the credential shapes for the supported
// email marketing providers and validates them before any client is built.
package configstore

import (
	"errors"
	"regexp"
	"strings"
)

const (
	KindKit            = "kit"
	KindMailerLite     = "mailerlite"
	KindMailchimp      = "mailchimp"
	KindActiveCampaign = "activecampaign"
)

const (
	// MetadataServerPrefix carries the Mailchimp data-center prefix (e.g. "us21").
	MetadataServerPrefix = "server_prefix"
	// MetadataBaseURL carries the ActiveCampaign account API base URL.
	MetadataBaseURL = "base_url"
)

var (
	mailchimpPrefixRe     = regexp.MustCompile(`^[a-z]{2}\d+$`)
	activeCampaignBaseRe  = regexp.MustCompile(`^https://[\w-]+\.api-us1\.com/?$`)
	emailMarketingKindSet = map[string]struct{}{
		KindKit:            {},
		KindMailerLite:     {},
		KindMailchimp:      {},
		KindActiveCampaign: {},
	}
	emailMarketingKindOrder = []string{KindKit, KindMailerLite, KindMailchimp, KindActiveCampaign}
)

// Kinds returns the closed set of provider kinds in display order.
func Kinds() []string {
	out := make([]string, len(emailMarketingKindOrder))
	copy(out, emailMarketingKindOrder)
	return out
}

// IsKind reports whether s is exactly one of the supported provider kinds.
// Matching is case-sensitive and whole-string; "Kit" and "mail" are not kinds.
func IsKind(s string) bool {
	_, ok := emailMarketingKindSet[s]
	return ok
}

// Credentials is the stored credential record for one (user, provider) pair.
// Metadata carries provider-specific settings such as the Mailchimp server
// prefix or the ActiveCampaign base URL.
type Credentials struct {
	APIKey   string            `json:"api_key"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c Credentials) metadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(c.Metadata[key])
}

type KitConfig struct {
	APIKey string `json:"api_key"`
}

func (c KitConfig) Normalized() KitConfig {
	out := c
	out.APIKey = strings.TrimSpace(out.APIKey)
	return out
}

func (c KitConfig) Validate() error {
	if c.Normalized().APIKey == "" {
		return errors.New("Kit API key is required")
	}
	return nil
}

type MailerLiteConfig struct {
	APIKey string `json:"api_key"`
}

func (c MailerLiteConfig) Normalized() MailerLiteConfig {
	out := c
	out.APIKey = strings.TrimSpace(out.APIKey)
	return out
}

func (c MailerLiteConfig) Validate() error {
	if c.Normalized().APIKey == "" {
		return errors.New("MailerLite API key is required")
	}
	return nil
}

type MailchimpConfig struct {
	APIKey       string `json:"api_key"`
	ServerPrefix string `json:"server_prefix"`
}

func (c MailchimpConfig) Normalized() MailchimpConfig {
	out := c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.ServerPrefix = strings.TrimSpace(out.ServerPrefix)
	return out
}

// BaseURL returns the data-center scoped API root.
func (c MailchimpConfig) BaseURL() string {
	prefix := strings.TrimSpace(c.ServerPrefix)
	if prefix == "" {
		return ""
	}
	return "https://" + prefix + ".api.mailchimp.com/3.0"
}

func (c MailchimpConfig) Validate() error {
	c = c.Normalized()
	if c.APIKey == "" {
		return errors.New("Mailchimp API key is required")
	}
	if !mailchimpPrefixRe.MatchString(c.ServerPrefix) {
		return errors.New("Mailchimp server prefix is invalid (expected e.g. us21)")
	}
	return nil
}

type ActiveCampaignConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

func (c ActiveCampaignConfig) Normalized() ActiveCampaignConfig {
	out := c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	return out
}

// APIRoot returns the versioned API root under the account base URL.
func (c ActiveCampaignConfig) APIRoot() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/api/3"
}

func (c ActiveCampaignConfig) Validate() error {
	norm := c.Normalized()
	if norm.APIKey == "" {
		return errors.New("ActiveCampaign API key is required")
	}
	if !activeCampaignBaseRe.MatchString(strings.TrimSpace(c.BaseURL)) {
		return errors.New("ActiveCampaign base URL is invalid (expected https://<account>.api-us1.com)")
	}
	return nil
}

func DecodeKitConfig(creds Credentials) KitConfig {
	return KitConfig{APIKey: creds.APIKey}.Normalized()
}

func DecodeMailerLiteConfig(creds Credentials) MailerLiteConfig {
	return MailerLiteConfig{APIKey: creds.APIKey}.Normalized()
}

func DecodeMailchimpConfig(creds Credentials) MailchimpConfig {
	return MailchimpConfig{
		APIKey:       creds.APIKey,
		ServerPrefix: creds.metadata(MetadataServerPrefix),
	}.Normalized()
}

func DecodeActiveCampaignConfig(creds Credentials) ActiveCampaignConfig {
	return ActiveCampaignConfig{
		APIKey:  creds.APIKey,
		BaseURL: creds.metadata(MetadataBaseURL),
	}.Normalized()
}

// MaskSecret renders a secret for logs and API responses, keeping only the
// last four characters visible.
func MaskSecret(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
