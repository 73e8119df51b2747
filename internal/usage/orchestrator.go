package usage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agusx1211/usagebar/internal/debug"
)

// DefaultDeadline bounds one whole aggregation pass.
const DefaultDeadline = 5 * time.Second

// Orchestrator fetches resolved entries concurrently under one deadline.
type Orchestrator struct {
	Registry *Registry
	Deadline time.Duration
	Now      func() time.Time
}

// Result is the raw outcome of one batch.
type Result struct {
	// Snapshots is keyed by entry id. Each key is written at most once.
	Snapshots map[string]Snapshot
	// Order lists entry ids in completion order.
	Order []string
	// Failures holds the error text of entries that returned no snapshot.
	Failures map[string]string
	// Pending lists entries still in flight when the deadline fired.
	Pending []string
}

type job struct {
	entry   Entry
	handler Provider
}

type outcome struct {
	entry Entry
	snap  *Snapshot
	err   error
}

func (o *Orchestrator) deadline() time.Duration {
	if o.Deadline <= 0 {
		return DefaultDeadline
	}
	return o.Deadline
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run fetches every entry that survives the filter and enabled predicate.
// It always returns; entries that fail, panic, or are still running when the
// deadline fires are simply absent from the result. The context handed to
// fetches is cancelled when Run returns.
func (o *Orchestrator) Run(ctx context.Context, entries []Entry, isEnabled func(ProviderID) bool, filter Filter) Result {
	res := Result{
		Snapshots: make(map[string]Snapshot),
		Failures:  make(map[string]string),
	}
	if isEnabled == nil {
		isEnabled = func(ProviderID) bool { return true }
	}

	jobs := o.plan(entries, isEnabled, filter)
	if len(jobs) == 0 {
		return res
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to len(jobs) so late senders never block after we stop reading.
	results := make(chan outcome, len(jobs))
	pending := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		pending[j.entry.EntryID] = struct{}{}
		go runJob(fetchCtx, j, results)
	}

	timer := time.NewTimer(o.deadline())
	defer timer.Stop()

	for len(pending) > 0 {
		select {
		case out := <-results:
			delete(pending, out.entry.EntryID)
			o.collect(&res, out)
		case <-timer.C:
			res.Pending = sortedKeys(pending)
			debug.LogKV("usage", "deadline reached", "deadline", o.deadline(), "pending", res.Pending)
			return res
		case <-ctx.Done():
			res.Pending = sortedKeys(pending)
			debug.LogKV("usage", "pass cancelled", "error", ctx.Err(), "pending", res.Pending)
			return res
		}
	}
	return res
}

func (o *Orchestrator) plan(entries []Entry, isEnabled func(ProviderID) bool, filter Filter) []job {
	var jobs []job
	seen := make(map[string]struct{})
	covered := make(map[ProviderID]struct{})

	for _, e := range entries {
		if !filter.allowsEntry(o.Registry, e) {
			debug.LogKV("usage", "entry filtered", "entry", e.EntryID)
			continue
		}
		if !isEnabled(e.ProviderID) {
			debug.LogKV("usage", "entry disabled", "entry", e.EntryID)
			continue
		}
		if _, dup := seen[e.EntryID]; dup {
			continue
		}
		h := o.Registry.Handler(e.ProviderID)
		if h == nil {
			continue
		}
		seen[e.EntryID] = struct{}{}
		covered[e.ProviderID] = struct{}{}
		jobs = append(jobs, job{entry: e, handler: h})
	}

	for _, d := range o.Registry.Descriptors() {
		if !d.Ambient || d.Handler == nil {
			continue
		}
		if _, ok := covered[d.ID]; ok {
			continue
		}
		if !filter.allowsProvider(d.ID) || !isEnabled(d.ID) {
			continue
		}
		id := string(d.ID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		jobs = append(jobs, job{entry: Entry{ProviderID: d.ID, EntryID: id}, handler: d.Handler})
	}
	return jobs
}

func runJob(ctx context.Context, j job, results chan<- outcome) {
	out := outcome{entry: j.entry}
	defer func() {
		if r := recover(); r != nil {
			out.snap = nil
			out.err = fmt.Errorf("provider panicked: %v", r)
		}
		results <- out
	}()
	out.snap, out.err = j.handler.FetchUsage(ctx, j.entry.Auth)
}

func (o *Orchestrator) collect(res *Result, out outcome) {
	id := out.entry.EntryID
	if out.err != nil {
		res.Failures[id] = out.err.Error()
		debug.LogKV("usage", "fetch failed", "entry", id, "error", out.err)
		return
	}
	if out.snap == nil {
		debug.LogKV("usage", "fetch returned no data", "entry", id)
		return
	}

	snap, ok := o.normalize(out.entry, *out.snap)
	if !ok {
		debug.LogKV("usage", "fetch returned empty snapshot", "entry", id)
		return
	}
	res.Snapshots[id] = snap
	res.Order = append(res.Order, id)
}

// normalize stamps the entry identity onto a handler result and rebuilds
// missing results into the canonical missing shape.
func (o *Orchestrator) normalize(e Entry, s Snapshot) (Snapshot, bool) {
	if s.IsMissing {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = o.now()
		}
		return NewMissing(e.ProviderID, e.EntryID, e.Label(), s.MissingReason, s.MissingDetails, ts), true
	}
	if !s.HasData() {
		return Snapshot{}, false
	}
	s.Provider = e.ProviderID
	s.EntryID = e.EntryID
	if s.Label == "" {
		s.Label = e.Label()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = o.now()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.Timestamp
	}
	s.MissingReason = ""
	s.MissingDetails = nil
	return s, true
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
