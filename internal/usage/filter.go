package usage

import "strings"

var filterAliases = map[string]ProviderID{
	"codex":      ProviderCodex,
	"openai":     ProviderCodex,
	"gpt":        ProviderCodex,
	"proxy":      ProviderProxy,
	"agy":        ProviderProxy,
	"gemini":     ProviderProxy,
	"copilot":    ProviderCopilot,
	"github":     ProviderCopilot,
	"zai":        ProviderZai,
	"glm":        ProviderZai,
	"anthropic":  ProviderAnthropic,
	"claude":     ProviderAnthropic,
	"openrouter": ProviderOpenRouter,
	"or":         ProviderOpenRouter,
}

// ResolveFilter maps a user-supplied alias to a provider. Unknown or empty
// aliases report ok == false, which callers treat as "no filter".
func ResolveFilter(alias string) (ProviderID, bool) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return "", false
	}
	id, ok := filterAliases[alias]
	return id, ok
}

// Toggles holds per-provider enable flags keyed by toggle name.
type Toggles map[string]bool

// toggleName returns the configuration key governing a provider.
func toggleName(id ProviderID) string {
	switch id {
	case ProviderCodex:
		return "openai"
	case ProviderZai:
		return "zai"
	default:
		return string(id)
	}
}

// Enabled builds the per-pass predicate. Absent toggles mean enabled.
func (t Toggles) Enabled() func(ProviderID) bool {
	snapshot := make(map[string]bool, len(t))
	for k, v := range t {
		snapshot[strings.ToLower(k)] = v
	}
	return func(id ProviderID) bool {
		v, ok := snapshot[toggleName(id)]
		return !ok || v
	}
}

// Filter narrows a pass to one provider and, for multi-key providers,
// optionally to one key name.
type Filter struct {
	Target  ProviderID
	KeyName string
}

// NewFilter normalizes raw command-surface input.
func NewFilter(alias, keyName string) Filter {
	target, _ := ResolveFilter(alias)
	return Filter{Target: target, KeyName: strings.ToLower(strings.TrimSpace(keyName))}
}

func (f Filter) allowsProvider(id ProviderID) bool {
	return f.Target == "" || f.Target == id
}

func (f Filter) allowsEntry(reg *Registry, e Entry) bool {
	if !f.allowsProvider(e.ProviderID) {
		return false
	}
	if f.KeyName == "" || !reg.IsMultiKey(e.ProviderID) {
		return true
	}
	return strings.ToLower(e.Label()) == f.KeyName
}
