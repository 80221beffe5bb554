// Package app holds the root Bubble Tea model: view routing, layout,
// and the wiring between the poller, the read-state store, and the
// backend.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/invite"
	"github.com/ltran/capstone-notify/internal/keys"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/notify"
	"github.com/ltran/capstone-notify/internal/readstate"
	appsync "github.com/ltran/capstone-notify/internal/sync"
	"github.com/ltran/capstone-notify/internal/ui"
	"github.com/ltran/capstone-notify/internal/ui/notifcenter"
	"github.com/ltran/capstone-notify/internal/ui/setup"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewSetup
	ViewHelp
)

// actionResultMsg reports the outcome of a read-mark action.
type actionResultMsg struct {
	err error
}

// invitationResultMsg reports the outcome of an accept or decline.
type invitationResultMsg struct {
	notification model.Notification
	accepted     bool
	err          error
}

// Model is the root Bubble Tea model.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	helpModel    help.Model

	cfg        *model.AppConfig
	configPath string
	reads      *readstate.Store
	changeBus  *bus.Bus
	responder  *invite.Responder
	poller     *appsync.Poller

	notifList notifcenter.Model
	setupView setup.Model

	ready       bool
	lastSeq     uint64
	lastSync    time.Time
	unreadCount int
	errMsg      string
	authErrMsg  string
}

// New creates the root application model. The aggregation pipeline is
// built here when the backend is configured; otherwise the app opens
// on the setup form.
func New(
	cfg *model.AppConfig,
	configPath string,
	reads *readstate.Store,
	changeBus *bus.Bus,
) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView: ViewList,
		keys:        k,
		helpModel:   help.New(),
		cfg:         cfg,
		configPath:  configPath,
		reads:       reads,
		changeBus:   changeBus,
		notifList:   notifcenter.New(k, 80, 24),
		setupView:   setup.New(cfg, configPath, 80, 24),
	}

	if !m.rebuildPipeline() {
		m.currentView = ViewSetup
	}

	return m
}

// Init starts polling when the backend is configured and the setup
// form otherwise.
func (m Model) Init() tea.Cmd {
	if m.poller != nil {
		return m.poller.Start()
	}
	return m.setupView.Init()
}

// rebuildPipeline (re)builds the aggregator, responder, and poller.
// Reports false when the backend is not configured yet. The caller is
// responsible for starting the new poller.
func (m *Model) rebuildPipeline() bool {
	aggregator, client := buildAggregator(m.cfg, m.reads)
	if aggregator == nil {
		return false
	}

	m.responder = invite.NewResponder(client, m.reads, m.changeBus)
	m.adoptPoller(appsync.New(
		aggregator,
		m.changeBus,
		time.Duration(m.cfg.Backend.PollIntervalSec)*time.Second,
		notify.Options{
			LookAhead:    time.Duration(m.cfg.Aggregation.LookAheadDays) * 24 * time.Hour,
			LookBack:     time.Duration(m.cfg.Aggregation.LookBackHours) * time.Hour,
			PerSourceCap: m.cfg.Aggregation.PerSourceCap,
		},
	))

	return true
}

// adoptPoller swaps in a freshly built poller. The sequence high-water
// mark belongs to the old poller, so it resets too; otherwise every
// result from the new poller would look stale and be dropped.
func (m *Model) adoptPoller(p *appsync.Poller) {
	if m.poller != nil {
		m.poller.Stop()
	}
	m.poller = p
	m.lastSeq = 0
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.notifList.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpModel.Width = m.layout.ContentWidth()
		// Forward to the active view so huh forms can size themselves.
		return m.updateActiveView(msg)

	case appsync.AggregateResultMsg:
		if msg.Seq < m.lastSeq {
			// A slower pass finished after a newer one; drop it.
			return m, m.poller.WaitForNextResult()
		}
		m.lastSeq = msg.Seq
		m.lastSync = msg.CompletedAt
		m.unreadCount = msg.UnreadCount
		m.authErrMsg = ""
		if msg.AuthError != nil {
			m.authErrMsg = fmt.Sprintf(
				"%s authentication failed; press s to reconfigure", msg.AuthError.Collector,
			)
		}
		cmd := m.notifList.SetNotifications(msg.Notifications)
		return m, tea.Batch(cmd, m.poller.WaitForNextResult())

	case notifcenter.MarkReadRequestMsg:
		return m, m.markRead([]string{msg.Notification.ID})

	case notifcenter.MarkAllReadRequestMsg:
		return m, m.markRead(msg.IDs)

	case notifcenter.InvitationActionMsg:
		return m, m.respondToInvitation(msg.Notification, msg.Accept)

	case actionResultMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("mark read failed: %v", msg.err)
		} else {
			m.errMsg = ""
		}
		return m, nil

	case invitationResultMsg:
		if msg.err != nil {
			verb := "accept"
			if !msg.accepted {
				verb = "decline"
			}
			m.errMsg = fmt.Sprintf("could not %s invitation: %v", verb, msg.err)
			return m, nil
		}
		m.errMsg = ""
		// Show the transformed entry immediately instead of waiting for
		// the next aggregation pass.
		cmd := m.notifList.ReplaceNotification(msg.notification)
		m.unreadCount = m.notifList.UnreadCount()
		return m, cmd

	case setup.DoneMsg:
		m.currentView = ViewList
		if !msg.Saved {
			return m, nil
		}
		if m.rebuildPipeline() {
			return m, m.poller.Start()
		}
		m.errMsg = "backend still unconfigured"
		return m, nil

	case tea.KeyMsg:
		if newModel, cmd, handled := m.handleGlobalKeys(msg); handled {
			return newModel, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that work regardless of the active
// view. Returns handled=false to fall through to the active view.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.stopPoller()
		return m, tea.Quit, true

	case "q":
		if m.currentView == ViewList {
			m.stopPoller()
			return m, tea.Quit, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil, true
		}

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case "r":
		if m.currentView == ViewList && m.poller != nil {
			m.poller.Trigger()
			return m, nil, true
		}

	case "s":
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewSetup
			m.setupView = setup.New(
				m.cfg, m.configPath,
				m.layout.ContentWidth(), m.layout.ContentHeight(),
			)
			return m, m.setupView.Init(), true
		}
	}

	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.notifList, cmd = m.notifList.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewHelp:
		// Static content; nothing to update.
	}

	return m, cmd
}

// markRead returns a command that persists read marks for the given
// ids. The store emits on the change bus, which re-triggers the
// poller, so the refreshed list follows on its own.
func (m Model) markRead(ids []string) tea.Cmd {
	reads := m.reads
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return actionResultMsg{err: reads.MarkIDsRead(ctx, ids)}
	}
}

// respondToInvitation returns a command that accepts or declines a
// pending team invitation through the backend.
func (m Model) respondToInvitation(n model.Notification, accept bool) tea.Cmd {
	responder := m.responder
	if responder == nil {
		return func() tea.Msg {
			return invitationResultMsg{
				notification: n,
				accepted:     accept,
				err:          fmt.Errorf("backend not configured"),
			}
		}
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var (
			result model.Notification
			err    error
		)
		if accept {
			result, err = responder.Accept(ctx, n)
		} else {
			result, err = responder.Decline(ctx, n)
		}

		return invitationResultMsg{
			notification: result,
			accepted:     accept,
			err:          err,
		}
	}
}

// stopPoller halts background polling if it is running.
func (m *Model) stopPoller() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Capstone Notify"
	if m.unreadCount > 0 {
		headerTitle = fmt.Sprintf("Capstone Notify [%d unread]", m.unreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.notifList.View()
	case ViewSetup:
		return m.setupView.View()
	case ViewHelp:
		return m.helpModel.FullHelpView(m.keys.FullHelp())
	default:
		return ""
	}
}

// syncStatus returns the header's right-hand status segment.
func (m Model) syncStatus() string {
	if m.poller == nil {
		return "not configured"
	}
	if m.lastSync.IsZero() {
		return "syncing"
	}
	return "synced " + m.lastSync.Format("15:04")
}

// statusLine returns the status bar content: a transient error when
// present, keyboard hints otherwise.
func (m Model) statusLine() string {
	if m.currentView == ViewList {
		if m.errMsg != "" {
			return m.errMsg
		}
		if m.authErrMsg != "" {
			return m.authErrMsg
		}
	}

	switch m.currentView {
	case ViewSetup:
		return "enter next | shift+tab back | esc cancel"
	case ViewHelp:
		return "? close help | esc back"
	default:
		return "q quit | ? help | r refresh | tab filter | m mark read | M mark all | a accept | d decline"
	}
}
