package notify

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/source"
)

type fakeDirectory struct {
	projects []model.Project
	err      error
}

func (d *fakeDirectory) ListMyProjects(_ context.Context) ([]model.Project, error) {
	return d.projects, d.err
}

type fakeReads struct {
	set map[string]bool
}

func (r *fakeReads) ReadSet(_ context.Context) map[string]bool {
	if r.set == nil {
		return map[string]bool{}
	}
	return r.set
}

type fakeCollector struct {
	typ     source.CollectorType
	scoped  bool
	collect func(scope source.Scope) ([]source.Record, error)
	calls   atomic.Int32
}

func (c *fakeCollector) Type() source.CollectorType { return c.typ }

func (c *fakeCollector) ProjectScoped() bool { return c.scoped }

func (c *fakeCollector) Collect(_ context.Context, scope source.Scope) ([]source.Record, error) {
	c.calls.Add(1)
	if c.collect == nil {
		return nil, nil
	}
	return c.collect(scope)
}

var testNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func singleProject() *fakeDirectory {
	return &fakeDirectory{projects: []model.Project{{ID: 42, Name: "Rocket"}}}
}

func feedbackRecord(scope source.Scope, id string, at time.Time) source.Record {
	return source.Record{
		Kind:        source.RecordFeedback,
		ProjectID:   scope.ProjectID,
		ProjectName: scope.ProjectName,
		RecordID:    id,
		Title:       "New feedback",
		OccurredAt:  at,
	}
}

func TestAggregateSortsDescendingWithZeroTimeLast(t *testing.T) {
	collector := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{
				feedbackRecord(scope, "past", testNow.Add(-time.Hour)),
				feedbackRecord(scope, "undated", time.Time{}),
				feedbackRecord(scope, "far", testNow.Add(48*time.Hour)),
				feedbackRecord(scope, "near", testNow.Add(time.Hour)),
			}, nil
		},
	}

	agg := New(singleProject(), &fakeReads{}, collector)
	got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

	if len(got) != 4 {
		t.Fatalf("got %d notifications, want 4", len(got))
	}

	wantOrder := []string{"fb:42:far", "fb:42:near", "fb:42:past", "fb:42:undated"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	collector := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{
				feedbackRecord(scope, "1", testNow),
				feedbackRecord(scope, "2", testNow), // same timestamp, stable tie
			}, nil
		},
	}

	agg := New(singleProject(), &fakeReads{}, collector)

	first, _ := agg.Aggregate(context.Background(), Options{Now: testNow})
	second, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated aggregation differs:\n%+v\nvs\n%+v", first, second)
	}
	if first[0].ID != "fb:42:1" || first[1].ID != "fb:42:2" {
		t.Fatalf("tie order not stable: %s, %s", first[0].ID, first[1].ID)
	}
}

func TestCollectorFailureIsIsolated(t *testing.T) {
	failing := &fakeCollector{
		typ:    source.CollectorDeadline,
		scoped: true,
		collect: func(_ source.Scope) ([]source.Record, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	working := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{feedbackRecord(scope, "7", testNow)}, nil
		},
	}

	agg := New(singleProject(), &fakeReads{}, failing, working)
	got, authErr := agg.Aggregate(context.Background(), Options{Now: testNow})

	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].ID != "fb:42:7" {
		t.Fatalf("surviving notification = %s, want fb:42:7", got[0].ID)
	}
	if authErr != nil {
		t.Fatalf("plain failure reported as auth error: %v", authErr)
	}
}

func TestCollectorAuthErrorSurfacedWithResults(t *testing.T) {
	rejected := &fakeCollector{
		typ:    source.CollectorDeadline,
		scoped: true,
		collect: func(_ source.Scope) ([]source.Record, error) {
			return nil, &source.AuthError{
				Collector: source.CollectorDeadline,
				Message:   "token expired",
			}
		},
	}
	working := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{feedbackRecord(scope, "7", testNow)}, nil
		},
	}

	agg := New(singleProject(), &fakeReads{}, rejected, working)
	got, authErr := agg.Aggregate(context.Background(), Options{Now: testNow})

	// The pass still completes with the healthy collector's records.
	if len(got) != 1 || got[0].ID != "fb:42:7" {
		t.Fatalf("unexpected notifications: %+v", got)
	}
	if authErr == nil {
		t.Fatal("credential rejection not surfaced")
	}
	if authErr.Collector != source.CollectorDeadline {
		t.Fatalf("auth error from %s, want %s", authErr.Collector, source.CollectorDeadline)
	}
}

func TestProjectListingAuthErrorSurfaced(t *testing.T) {
	directory := &fakeDirectory{err: &source.AuthError{
		Collector: source.CollectorBackend,
		Message:   "refresh failed",
	}}

	agg := New(directory, &fakeReads{}, &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
	})
	got, authErr := agg.Aggregate(context.Background(), Options{Now: testNow})

	if len(got) != 0 {
		t.Fatalf("got %d notifications, want 0", len(got))
	}
	if authErr == nil {
		t.Fatal("credential rejection not surfaced")
	}
	if authErr.Collector != source.CollectorBackend {
		t.Fatalf("auth error from %s, want %s", authErr.Collector, source.CollectorBackend)
	}
}

func TestProjectListingFailureYieldsEmptyResult(t *testing.T) {
	collector := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{feedbackRecord(scope, "7", testNow)}, nil
		},
	}

	directory := &fakeDirectory{err: errors.New("listing failed")}
	agg := New(directory, &fakeReads{}, collector)

	got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})
	if len(got) != 0 {
		t.Fatalf("got %d notifications, want 0", len(got))
	}
	if n := collector.calls.Load(); n != 0 {
		t.Fatalf("scoped collector ran %d times without projects", n)
	}
}

func TestDeadlinePriorityThresholds(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		want model.Priority
	}{
		{"due in 47 hours", testNow.Add(47 * time.Hour), model.PriorityHigh},
		{"due in 49 hours", testNow.Add(49 * time.Hour), model.PriorityMedium},
		{"overdue", testNow.Add(-time.Hour), model.PriorityHigh},
		{"no due date", time.Time{}, model.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &fakeCollector{
				typ:    source.CollectorDeadline,
				scoped: true,
				collect: func(scope source.Scope) ([]source.Record, error) {
					return []source.Record{{
						Kind:       source.RecordDeadline,
						ProjectID:  scope.ProjectID,
						Title:      "Midterm",
						OccurredAt: tt.due,
					}}, nil
				},
			}

			agg := New(singleProject(), &fakeReads{}, collector)
			got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

			if len(got) != 1 {
				t.Fatalf("got %d notifications, want 1", len(got))
			}
			if got[0].Priority != tt.want {
				t.Fatalf("priority = %s, want %s", got[0].Priority, tt.want)
			}
		})
	}
}

func TestEventPriorityThresholds(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  model.Priority
	}{
		{"starts in 23 hours", testNow.Add(23 * time.Hour), model.PriorityHigh},
		{"starts in 25 hours", testNow.Add(25 * time.Hour), model.PriorityMedium},
		{"started 1 hour ago", testNow.Add(-time.Hour), model.PriorityHigh},
		{"started 3 hours ago", testNow.Add(-3 * time.Hour), model.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &fakeCollector{
				typ:    source.CollectorEvent,
				scoped: true,
				collect: func(scope source.Scope) ([]source.Record, error) {
					return []source.Record{{
						Kind:       source.RecordEvent,
						ProjectID:  scope.ProjectID,
						RecordID:   "standup",
						Title:      "Weekly standup",
						OccurredAt: tt.start,
					}}, nil
				},
			}

			agg := New(singleProject(), &fakeReads{}, collector)
			got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

			if len(got) != 1 {
				t.Fatalf("got %d notifications, want 1", len(got))
			}
			if got[0].Priority != tt.want {
				t.Fatalf("priority = %s, want %s", got[0].Priority, tt.want)
			}
		})
	}
}

func TestReadFlagsDerivedFromReadSet(t *testing.T) {
	collector := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{
				feedbackRecord(scope, "seen", testNow),
				feedbackRecord(scope, "fresh", testNow.Add(time.Minute)),
			}, nil
		},
	}

	reads := &fakeReads{set: map[string]bool{"fb:42:seen": true}}
	agg := New(singleProject(), reads, collector)
	got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

	byID := map[string]bool{}
	for _, n := range got {
		byID[n.ID] = n.Read
	}

	if !byID["fb:42:seen"] {
		t.Fatal("marked notification not flagged read")
	}
	if byID["fb:42:fresh"] {
		t.Fatal("unmarked notification flagged read")
	}
}

func TestUnscopedCollectorRunsOncePerPass(t *testing.T) {
	directory := &fakeDirectory{projects: []model.Project{
		{ID: 1, Name: "Alpha"},
		{ID: 2, Name: "Beta"},
	}}

	scoped := &fakeCollector{typ: source.CollectorFeedback, scoped: true}
	unscoped := &fakeCollector{typ: source.CollectorInvitation, scoped: false}

	agg := New(directory, &fakeReads{}, scoped, unscoped)
	agg.Aggregate(context.Background(), Options{Now: testNow})

	if n := scoped.calls.Load(); n != 2 {
		t.Fatalf("scoped collector ran %d times, want 2", n)
	}
	if n := unscoped.calls.Load(); n != 1 {
		t.Fatalf("unscoped collector ran %d times, want 1", n)
	}
}

func TestScopedPassSkipsUnscopedCollectors(t *testing.T) {
	directory := &fakeDirectory{projects: []model.Project{
		{ID: 1, Name: "Alpha"},
		{ID: 42, Name: "Rocket"},
	}}

	scoped := &fakeCollector{typ: source.CollectorFeedback, scoped: true}
	unscoped := &fakeCollector{typ: source.CollectorInvitation, scoped: false}

	agg := New(directory, &fakeReads{}, scoped, unscoped)
	agg.Aggregate(context.Background(), Options{Now: testNow, ProjectID: 42})

	if n := scoped.calls.Load(); n != 1 {
		t.Fatalf("scoped collector ran %d times, want 1", n)
	}
	if n := unscoped.calls.Load(); n != 0 {
		t.Fatalf("unscoped collector ran %d times, want 0", n)
	}
}

func TestAggregateProjectScenario(t *testing.T) {
	feedbackAt := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	deadlineAt := testNow.Add(24 * time.Hour)

	feedback := &fakeCollector{
		typ:    source.CollectorFeedback,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{{
				Kind:        source.RecordFeedback,
				ProjectID:   scope.ProjectID,
				ProjectName: scope.ProjectName,
				RecordID:    "7",
				Title:       "New feedback from Dr. Smith",
				Body:        "Good progress on the prototype.",
				Author:      "Dr. Smith",
				OccurredAt:  feedbackAt,
			}}, nil
		},
	}
	deadlines := &fakeCollector{
		typ:    source.CollectorDeadline,
		scoped: true,
		collect: func(scope source.Scope) ([]source.Record, error) {
			return []source.Record{{
				Kind:        source.RecordDeadline,
				ProjectID:   scope.ProjectID,
				ProjectName: scope.ProjectName,
				Title:       "Midterm",
				OccurredAt:  deadlineAt,
			}}, nil
		},
	}

	agg := New(singleProject(), &fakeReads{}, feedback, deadlines)
	got, _ := agg.Aggregate(context.Background(), Options{Now: testNow})

	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}

	// The deadline is in the future, so it sorts first.
	deadline, fb := got[0], got[1]

	if deadline.ID != "dl:42:"+model.ContentHash("Midterm") {
		t.Fatalf("deadline id = %s", deadline.ID)
	}
	if deadline.Type != model.TypeAssignment {
		t.Fatalf("deadline type = %s", deadline.Type)
	}
	if deadline.Priority != model.PriorityHigh {
		t.Fatalf("deadline within 48h should be high, got %s", deadline.Priority)
	}
	if deadline.ProjectName != "Rocket" {
		t.Fatalf("deadline project name = %q", deadline.ProjectName)
	}

	if fb.ID != "fb:42:7" {
		t.Fatalf("feedback id = %s", fb.ID)
	}
	if fb.Type != model.TypeFeedback {
		t.Fatalf("feedback type = %s", fb.Type)
	}
	if fb.Priority != model.PriorityMedium {
		t.Fatalf("feedback priority = %s", fb.Priority)
	}
	if fb.RelatedID != "7" {
		t.Fatalf("feedback related id = %q", fb.RelatedID)
	}
	if fb.Read {
		t.Fatal("fresh feedback should be unread")
	}
}
