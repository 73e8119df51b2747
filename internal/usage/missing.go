package usage

import (
	"fmt"
	"time"
)

// CodexAuthFailedReason is the default missing reason for codex.
const CodexAuthFailedReason = "Auth resolution failed"

// Synthesis carries everything the synthesizer needs besides the batch result.
type Synthesis struct {
	Registry  *Registry
	Expected  []Entry
	IsEnabled func(ProviderID) bool
	Filter    Filter
	// Diagnostics are the credential loader's notes, attached to codex.
	Diagnostics []string
	Now         time.Time
}

// Synthesize turns a batch result into the final snapshot list: fetched
// snapshots in completion order, then one missing snapshot per enabled
// provider that produced nothing, then one per multi-key entry that failed.
func Synthesize(res Result, s Synthesis) []Snapshot {
	isEnabled := s.IsEnabled
	if isEnabled == nil {
		isEnabled = func(ProviderID) bool { return true }
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]Snapshot, 0, len(res.Order)+len(CanonicalProviders))
	satisfied := make(map[ProviderID]struct{})
	for _, id := range res.Order {
		snap, ok := res.Snapshots[id]
		if !ok {
			continue
		}
		out = append(out, snap)
		satisfied[snap.Provider] = struct{}{}
	}

	multi := make(map[ProviderID][]Entry)
	for _, e := range s.Expected {
		if !s.Registry.IsMultiKey(e.ProviderID) {
			continue
		}
		if !isEnabled(e.ProviderID) || !s.Filter.allowsEntry(s.Registry, e) {
			continue
		}
		multi[e.ProviderID] = append(multi[e.ProviderID], e)
	}

	for _, id := range CanonicalProviders {
		if _, ok := s.Registry.Lookup(id); !ok {
			continue
		}
		if !isEnabled(id) || !s.Filter.allowsProvider(id) {
			continue
		}
		if len(multi[id]) > 0 {
			continue
		}
		if _, ok := satisfied[id]; ok {
			continue
		}
		reason, details := providerMissing(id, res.Failures[string(id)], s.Diagnostics)
		out = append(out, NewMissing(id, string(id), "", reason, details, now))
	}

	for _, id := range CanonicalProviders {
		for _, e := range multi[id] {
			if _, ok := res.Snapshots[e.EntryID]; ok {
				continue
			}
			reason := fmt.Sprintf("%s key %q failed to fetch", id.DisplayName(), e.Label())
			var details []string
			if msg := res.Failures[e.EntryID]; msg != "" {
				details = []string{msg}
			}
			out = append(out, NewMissing(id, e.EntryID, e.Label(), reason, details, now))
		}
	}
	return out
}

func providerMissing(id ProviderID, failure string, diagnostics []string) (string, []string) {
	if id == ProviderCodex {
		details := append([]string(nil), diagnostics...)
		if failure != "" {
			details = append(details, failure)
		}
		return CodexAuthFailedReason, details
	}
	if failure != "" {
		return failure, nil
	}
	return "", nil
}
