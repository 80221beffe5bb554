// Package notify turns raw source records into the unified
// notification list. Aggregation is a pure function of the source
// records and the read set: the same inputs always produce the same
// ids, order, and read flags.
package notify

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/source"
)

// Defaults applied when an Options field is zero.
const (
	DefaultLookAhead    = 14 * 24 * time.Hour
	DefaultLookBack     = 6 * time.Hour
	DefaultPerSourceCap = 5
)

// Priority thresholds from the nearness rules: a deadline due within
// 48 hours is high, an event starting between 2 hours ago and 24 hours
// from now is high.
const (
	deadlineHighWindow = 48 * time.Hour
	eventHighBefore    = 2 * time.Hour
	eventHighAfter     = 24 * time.Hour
)

// ProjectDirectory resolves the set of projects to aggregate over.
type ProjectDirectory interface {
	ListMyProjects(ctx context.Context) ([]model.Project, error)
}

// ReadStates supplies the acknowledged-id set used to derive read flags.
type ReadStates interface {
	ReadSet(ctx context.Context) map[string]bool
}

// Options controls a single aggregation pass.
type Options struct {
	// ProjectID scopes the pass to a single project when non-zero;
	// otherwise all of the user's projects are aggregated.
	ProjectID int64

	// LookAhead bounds how far into the future events are collected.
	LookAhead time.Duration

	// LookBack keeps slightly-past events visible.
	LookBack time.Duration

	// PerSourceCap limits how many records each collector contributes
	// per project.
	PerSourceCap int

	// Now overrides the aggregation clock. Zero means time.Now; tests
	// pin it for deterministic priorities.
	Now time.Time
}

func (o Options) withDefaults() Options {
	if o.LookAhead <= 0 {
		o.LookAhead = DefaultLookAhead
	}
	if o.LookBack <= 0 {
		o.LookBack = DefaultLookBack
	}
	if o.PerSourceCap <= 0 {
		o.PerSourceCap = DefaultPerSourceCap
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Aggregator combines collector outputs into a single uniform
// notification list.
type Aggregator struct {
	projects   ProjectDirectory
	reads      ReadStates
	collectors []source.Collector
}

// New creates an Aggregator over the given directory, read set, and
// collectors.
func New(
	projects ProjectDirectory,
	reads ReadStates,
	collectors ...source.Collector,
) *Aggregator {
	return &Aggregator{
		projects:   projects,
		reads:      reads,
		collectors: collectors,
	}
}

// Aggregate runs one aggregation pass. It never fails: a collector
// error contributes an empty list for that collector only, and a
// project-listing failure yields an empty result, since showing no
// notifications is preferable to a broken view. The first
// authentication failure seen during the pass is reported alongside
// the result so the UI can tell the user to reconfigure credentials.
func (a *Aggregator) Aggregate(
	ctx context.Context, opts Options,
) ([]model.Notification, *source.AuthError) {
	opts = opts.withDefaults()

	projects, authErr := a.resolveProjects(ctx, opts)

	var authMu sync.Mutex
	noteAuthError := func(err error) {
		ae := asAuthError(err)
		if ae == nil {
			return
		}
		authMu.Lock()
		if authErr == nil {
			authErr = ae
		}
		authMu.Unlock()
	}

	type job struct {
		collector source.Collector
		scope     source.Scope
	}

	var jobs []job
	for _, p := range projects {
		for _, c := range a.collectors {
			if !c.ProjectScoped() {
				continue
			}
			jobs = append(jobs, job{
				collector: c,
				scope: source.Scope{
					ProjectID:   p.ID,
					ProjectName: p.Name,
					Limit:       opts.PerSourceCap,
					From:        opts.Now.Add(-opts.LookBack),
					To:          opts.Now.Add(opts.LookAhead),
				},
			})
		}
	}
	// Project-independent collectors run exactly once per pass, and
	// only when the pass is not scoped to a single project.
	if opts.ProjectID == 0 {
		for _, c := range a.collectors {
			if c.ProjectScoped() {
				continue
			}
			jobs = append(jobs, job{
				collector: c,
				scope: source.Scope{
					Limit: opts.PerSourceCap,
					From:  opts.Now.Add(-opts.LookBack),
					To:    opts.Now.Add(opts.LookAhead),
				},
			})
		}
	}

	// Fan out, keeping results indexed by job so the flattened order
	// (and therefore sort tie-breaking) is deterministic regardless of
	// arrival order.
	results := make([][]source.Record, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			records, err := j.collector.Collect(ctx, j.scope)
			if err != nil {
				log.Printf(
					"collector %s failed for project %d: %v",
					j.collector.Type(), j.scope.ProjectID, err,
				)
				noteAuthError(err)
				return
			}
			results[i] = records
		}(i, j)
	}
	wg.Wait()

	readSet := a.reads.ReadSet(ctx)

	var notifications []model.Notification
	for _, records := range results {
		for _, rec := range records {
			n := toNotification(rec, opts.Now)
			n.Read = readSet[n.ID]
			notifications = append(notifications, n)
		}
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})

	return notifications, authErr
}

// resolveProjects returns the project set for the pass. A scoped pass
// looks the project name up best-effort; a listing failure degrades to
// the bare id rather than an empty scoped pass.
func (a *Aggregator) resolveProjects(
	ctx context.Context, opts Options,
) ([]model.Project, *source.AuthError) {
	if opts.ProjectID != 0 {
		projects, err := a.projects.ListMyProjects(ctx)
		if err == nil {
			for _, p := range projects {
				if p.ID == opts.ProjectID {
					return []model.Project{p}, nil
				}
			}
		}
		return []model.Project{{ID: opts.ProjectID}}, asAuthError(err)
	}

	projects, err := a.projects.ListMyProjects(ctx)
	if err != nil {
		log.Printf("listing projects failed: %v", err)
		return nil, asAuthError(err)
	}
	return projects, nil
}

// asAuthError extracts an AuthError from err's chain, or nil.
func asAuthError(err error) *source.AuthError {
	var ae *source.AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// toNotification maps one raw record to its notification: synthetic
// key, type, and priority.
func toNotification(rec source.Record, now time.Time) model.Notification {
	n := model.Notification{
		Title:       rec.Title,
		Message:     rec.Body,
		Timestamp:   rec.OccurredAt,
		ProjectID:   rec.ProjectID,
		ProjectName: rec.ProjectName,
	}

	switch rec.Kind {
	case source.RecordFeedback:
		n.Type = model.TypeFeedback
		n.Priority = model.PriorityMedium
		n.RelatedID = rec.RecordID
		n.ID = model.Key{
			Kind: model.KindFeedback, ProjectID: rec.ProjectID, RecordID: rec.RecordID,
		}.String()

	case source.RecordDeadline:
		n.Type = model.TypeAssignment
		n.Priority = deadlinePriority(rec.OccurredAt, now)
		n.ID = model.Key{
			Kind:      model.KindDeadline,
			ProjectID: rec.ProjectID,
			RecordID:  model.ContentHash(rec.Title),
		}.String()

	case source.RecordEvent:
		n.Type = model.TypeSchedule
		n.Priority = eventPriority(rec.OccurredAt, now)
		n.ID = model.Key{
			Kind: model.KindEvent, ProjectID: rec.ProjectID, RecordID: rec.RecordID,
		}.String()

	case source.RecordInvitation:
		n.Type = model.TypeTeamInvitation
		n.Priority = model.PriorityHigh
		n.RelatedID = rec.RecordID
		n.ID = model.Key{
			Kind: model.KindInvitation, ProjectID: rec.ProjectID, RecordID: rec.RecordID,
		}.String()

	case source.RecordCommit:
		n.Type = model.TypeCommit
		n.Priority = model.PriorityLow
		n.ID = model.Key{
			Kind: model.KindCommit, ProjectID: rec.ProjectID, RecordID: rec.RecordID,
		}.String()

	case source.RecordSystem:
		n.Type = model.TypeSystem
		n.Priority = model.PriorityMedium
		n.ID = model.Key{
			Kind: model.KindSystem, ProjectID: rec.ProjectID, RecordID: rec.RecordID,
		}.String()
	}

	return n
}

// deadlinePriority is high when the deadline is due within 48 hours,
// including overdue deadlines. Records with no parsable due date stay
// medium.
func deadlinePriority(due, now time.Time) model.Priority {
	if due.IsZero() {
		return model.PriorityMedium
	}
	if due.Sub(now) <= deadlineHighWindow {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

// eventPriority is high when the event starts between 2 hours ago and
// 24 hours from now.
func eventPriority(start, now time.Time) model.Priority {
	if start.IsZero() {
		return model.PriorityMedium
	}
	delta := start.Sub(now)
	if delta >= -eventHighBefore && delta <= eventHighAfter {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}
