package usage

import (
	"fmt"
	"strings"
)

const defaultKeyName = "default"

// Resolve turns the credential record and named-key configuration into the
// ordered list of entries to fetch. It performs no I/O.
//
// Single-credential providers come first in registry order, followed by the
// entries of each multi-key provider (configured keys in list order, then the
// legacy record fallback).
func Resolve(reg *Registry, record CredentialRecord, namedKeys map[ProviderID][]NamedKey) []Entry {
	var entries []Entry
	var multi []Descriptor

	for _, d := range reg.Descriptors() {
		if d.MultiKey {
			multi = append(multi, d)
			continue
		}
		if e, ok := resolveSingle(d, record); ok {
			entries = append(entries, e)
		}
	}

	for _, d := range multi {
		entries = append(entries, resolveMulti(d, record, namedKeys[d.ID])...)
	}
	return entries
}

func resolveSingle(d Descriptor, record CredentialRecord) (Entry, bool) {
	for _, key := range d.AuthKeys {
		cred := record[key]
		if cred == nil {
			continue
		}
		// First present alias wins, even when its shape is rejected below.
		if d.RequiresOAuth && cred.Type != "" && cred.Type != "oauth" && cred.Type != "token" {
			return Entry{}, false
		}
		return Entry{
			ProviderID: d.ID,
			EntryID:    string(d.ID),
			Auth:       buildAuth(d.ID, cred),
		}, true
	}
	return Entry{}, false
}

func resolveMulti(d Descriptor, record CredentialRecord, configured []NamedKey) []Entry {
	var entries []Entry
	seenKeys := make(map[string]struct{})
	seenNames := make(map[string]struct{})

	add := func(key, name string) {
		name = uniqueName(name, seenNames)
		seenKeys[key] = struct{}{}
		seenNames[strings.ToLower(name)] = struct{}{}
		entries = append(entries, Entry{
			ProviderID: d.ID,
			EntryID:    string(d.ID) + ":" + name,
			Auth:       &Auth{Key: key, KeyName: name},
		})
	}

	for _, nk := range configured {
		key := strings.TrimSpace(nk.Key)
		if key == "" {
			continue
		}
		if _, dup := seenKeys[key]; dup {
			continue
		}
		if nk.disabled() {
			continue
		}
		name := strings.TrimSpace(nk.Name)
		if name == "" {
			name = fmt.Sprintf("key-%d", len(entries)+1)
		}
		add(key, name)
	}

	for _, alias := range d.AuthKeys {
		cred := record[alias]
		if cred == nil {
			continue
		}
		key := strings.TrimSpace(firstNonEmpty(cred.Key, cred.Access))
		if key == "" {
			continue
		}
		if _, dup := seenKeys[key]; dup {
			continue
		}
		add(key, defaultKeyName)
		break
	}

	return entries
}

// uniqueName appends -2, -3, ... until candidate is unique case-insensitively.
func uniqueName(candidate string, seen map[string]struct{}) string {
	normalized := strings.ToLower(candidate)
	if _, taken := seen[normalized]; !taken {
		return candidate
	}
	for suffix := 2; ; suffix++ {
		if _, taken := seen[fmt.Sprintf("%s-%d", normalized, suffix)]; !taken {
			return fmt.Sprintf("%s-%d", candidate, suffix)
		}
	}
}
