package usage

import "context"

// Provider fetches one usage snapshot. auth is nil for providers that locate
// their own credentials. A nil snapshot with a nil error means "no data".
type Provider interface {
	FetchUsage(ctx context.Context, auth *Auth) (*Snapshot, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, auth *Auth) (*Snapshot, error)

func (f ProviderFunc) FetchUsage(ctx context.Context, auth *Auth) (*Snapshot, error) {
	return f(ctx, auth)
}

// Descriptor is one row of the provider table.
type Descriptor struct {
	ID ProviderID

	// AuthKeys lists credential-record keys in priority order.
	AuthKeys []string

	// RequiresOAuth skips matched credentials whose type is set to anything
	// other than "oauth" or "token".
	RequiresOAuth bool

	// MultiKey providers track several named credentials independently.
	MultiKey bool

	// Ambient providers are attempted with a nil auth when no credential
	// resolved for them.
	Ambient bool

	Handler Provider
}

// Registry is an ordered provider table. Order drives resolution order.
type Registry struct {
	descriptors []Descriptor
	index       map[ProviderID]int
}

func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{index: make(map[ProviderID]int, len(descriptors))}
	for _, d := range descriptors {
		if i, ok := r.index[d.ID]; ok {
			r.descriptors[i] = d
			continue
		}
		r.index[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r
}

func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

func (r *Registry) Lookup(id ProviderID) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

func (r *Registry) Handler(id ProviderID) Provider {
	d, ok := r.Lookup(id)
	if !ok {
		return nil
	}
	return d.Handler
}

// IsMultiKey reports whether id tracks credentials per named key.
func (r *Registry) IsMultiKey(id ProviderID) bool {
	d, ok := r.Lookup(id)
	return ok && d.MultiKey
}
