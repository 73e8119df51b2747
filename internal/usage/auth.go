package usage

import "strings"

// CredentialEntry is one blob of the external credential store.
type CredentialEntry struct {
	Type          string `json:"type,omitempty"`
	Access        string `json:"access,omitempty"`
	Refresh       string `json:"refresh,omitempty"`
	Key           string `json:"key,omitempty"`
	AccountID     string `json:"accountId,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	Expires       int64  `json:"expires,omitempty"`
}

// CredentialRecord maps a source key ("codex", "github-copilot", ...) to its
// credential. It is read-only input.
type CredentialRecord map[string]*CredentialEntry

// NamedKey is a user-configured credential for a multi-key provider.
type NamedKey struct {
	Key     string `json:"key"`
	Name    string `json:"name,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (k NamedKey) disabled() bool {
	return k.Enabled != nil && !*k.Enabled
}

// Auth is the credential handed to a provider for one fetch.
type Auth struct {
	Access        string
	Refresh       string
	Key           string
	AccountID     string
	EnterpriseURL string
	KeyName       string
}

// Entry is the unit of work for one fetch attempt.
type Entry struct {
	ProviderID ProviderID
	EntryID    string
	Auth       *Auth
}

func (e Entry) Label() string {
	if e.Auth == nil {
		return ""
	}
	return e.Auth.KeyName
}

func buildAuth(id ProviderID, c *CredentialEntry) *Auth {
	switch id {
	case ProviderCodex:
		return &Auth{Access: firstNonEmpty(c.Access, c.Key), AccountID: c.AccountID}
	case ProviderCopilot:
		return &Auth{Access: c.Access, Refresh: c.Refresh, EnterpriseURL: c.EnterpriseURL}
	case ProviderAnthropic:
		return &Auth{Access: firstNonEmpty(c.Access, c.Key), Refresh: c.Refresh}
	default:
		return &Auth{Key: firstNonEmpty(c.Key, c.Access)}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
