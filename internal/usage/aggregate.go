package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agusx1211/usagebar/internal/debug"
)

// Pass is the input of one aggregation sweep. Nothing in it is retained
// after Aggregate returns.
type Pass struct {
	Registry    *Registry
	Credentials CredentialRecord
	NamedKeys   map[ProviderID][]NamedKey
	Toggles     Toggles
	Filter      Filter
	Deadline    time.Duration
	Diagnostics []string
	Now         func() time.Time
}

// Report is the finished, render-ready outcome of one pass.
type Report struct {
	ID        string
	Target    ProviderID
	KeyName   string
	Snapshots []Snapshot
	StartedAt time.Time
	Duration  time.Duration
}

// Missing returns the placeholder snapshots of the report.
func (r Report) Missing() []Snapshot {
	var out []Snapshot
	for _, s := range r.Snapshots {
		if s.IsMissing {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate runs resolve, fetch and synthesis for one pass. It cannot fail;
// every problem surfaces as a missing snapshot or an absent one.
func Aggregate(ctx context.Context, p Pass) Report {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	id := uuid.NewString()

	entries := Resolve(p.Registry, p.Credentials, p.NamedKeys)
	isEnabled := p.Toggles.Enabled()
	debug.LogKV("usage", "pass started", "id", id, "entries", len(entries), "target", p.Filter.Target, "key", p.Filter.KeyName)

	orch := &Orchestrator{Registry: p.Registry, Deadline: p.Deadline, Now: now}
	res := orch.Run(ctx, entries, isEnabled, p.Filter)

	snaps := Synthesize(res, Synthesis{
		Registry:    p.Registry,
		Expected:    entries,
		IsEnabled:   isEnabled,
		Filter:      p.Filter,
		Diagnostics: p.Diagnostics,
		Now:         now(),
	})

	report := Report{
		ID:        id,
		Target:    p.Filter.Target,
		KeyName:   p.Filter.KeyName,
		Snapshots: snaps,
		StartedAt: started,
		Duration:  now().Sub(started),
	}
	debug.LogKV("usage", "pass finished", "id", id, "snapshots", len(snaps), "missing", len(report.Missing()), "duration", report.Duration)
	return report
}
