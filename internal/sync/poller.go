// Package sync runs aggregation passes in the background and hands
// the results to the Bubble Tea runtime.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/notify"
	"github.com/ltran/capstone-notify/internal/source"
)

// passTimeout is the maximum time allowed for a single aggregation pass.
const passTimeout = 30 * time.Second

// AggregateResultMsg is a tea.Msg sent when an aggregation pass
// completes. Seq increases monotonically; consumers must ignore
// results older than the newest one they have already applied, which
// guards against a slow pass overwriting fresher data.
type AggregateResultMsg struct {
	Notifications []model.Notification
	UnreadCount   int
	Seq           uint64
	CompletedAt   time.Time

	// AuthError is the first credential failure seen during the pass,
	// nil when every source authenticated.
	AuthError *source.AuthError
}

// Poller re-aggregates on a fixed interval, on manual triggers, and on
// every change-bus emission.
type Poller struct {
	aggregator *notify.Aggregator
	interval   time.Duration
	baseOpts   notify.Options

	resultCh  chan AggregateResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	seq     uint64
	running bool
	unsub   func()
}

// New creates a Poller over the given aggregator. Every emission on
// changeBus triggers an immediate pass.
func New(
	aggregator *notify.Aggregator,
	changeBus *bus.Bus,
	interval time.Duration,
	baseOpts notify.Options,
) *Poller {
	if interval <= 0 {
		interval = 120 * time.Second
	}

	p := &Poller{
		aggregator: aggregator,
		interval:   interval,
		baseOpts:   baseOpts,
		resultCh:   make(chan AggregateResultMsg, 16),
		triggerCh:  make(chan struct{}, 16),
		stopCh:     make(chan struct{}),
	}

	p.unsub = changeBus.Subscribe(p.Trigger)

	return p
}

// Start launches the polling goroutine and returns a command that
// waits for the first result. Calling Start twice is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine and detaches from the change bus.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.unsub()
	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate aggregation pass without blocking.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A pass is already queued.
	}
}

// loop is the polling loop: an initial pass, then ticks and triggers.
func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runPass()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runPass()
		case <-p.triggerCh:
			p.runPass()
		}
	}
}

// runPass executes one aggregation pass and publishes the result.
func (p *Poller) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	notifications, authErr := p.aggregator.Aggregate(ctx, p.baseOpts)

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	msg := AggregateResultMsg{
		Notifications: notifications,
		UnreadCount:   unread,
		Seq:           seq,
		CompletedAt:   time.Now(),
		AuthError:     authErr,
	}

	select {
	case p.resultCh <- msg:
	default:
		// Drop if the channel is full; a newer pass will follow.
	}
}

// waitForResult returns a tea.Cmd that waits for the next pass result.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next pass
// result. Call it after processing an AggregateResultMsg to keep
// listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
