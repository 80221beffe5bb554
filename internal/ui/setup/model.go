// Package setup implements the first-run configuration form.
package setup

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ltran/capstone-notify/internal/credential"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/theme"
)

// DoneMsg signals the setup view should close. Saved is true when the
// configuration was written, so the app can rebuild its sources.
type DoneMsg struct {
	Saved bool
}

// Model is the Bubble Tea model for the setup form.
type Model struct {
	form       *huh.Form
	cfg        *model.AppConfig
	configPath string
	statusMsg  string

	// Form field values (huh binds to these)
	formBaseURL      string
	formAccessToken  string
	formRefreshToken string
	formEmailEnabled bool
	formIMAPHost     string
	formIMAPPort     string
	formUsername     string
	formPassword     string
	formTLS          bool

	width, height int
}

// New creates a setup form pre-filled from the current configuration.
func New(cfg *model.AppConfig, configPath string, width, height int) Model {
	m := Model{
		cfg:              cfg,
		configPath:       configPath,
		formBaseURL:      cfg.Backend.BaseURL,
		formEmailEnabled: cfg.Email.Enabled,
		formIMAPHost:     cfg.Email.Host,
		formIMAPPort:     cfg.Email.Port,
		formUsername:     cfg.Email.Username,
		formTLS:          cfg.Email.TLS,
		width:            width,
		height:           height,
	}
	if m.formIMAPPort == "" {
		m.formIMAPPort = "993"
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Capstone platform URL (e.g., https://capstone.example.edu)").
				Placeholder("https://capstone.example.edu").
				Value(&m.formBaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Access Token").
				Description("Your platform access token").
				EchoMode(huh.EchoModePassword).
				Value(&m.formAccessToken).
				Validate(validateRequired("Access token")),
			huh.NewInput().
				Title("Refresh Token").
				Description("Optional; used to renew expired access tokens").
				EchoMode(huh.EchoModePassword).
				Value(&m.formRefreshToken),
			huh.NewConfirm().
				Title("Enable email announcements?").
				Description("Collect announcements from an IMAP mailbox").
				Value(&m.formEmailEnabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.edu").
				Value(&m.formIMAPHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP Port").
				Value(&m.formIMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Placeholder("student@example.edu").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS?").
				Value(&m.formTLS),
		).WithHideFunc(func() bool {
			return !m.formEmailEnabled
		}),
	).WithWidth(m.formWidth())
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and saves on completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if sizeMsg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = sizeMsg.Width
		m.height = sizeMsg.Height
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return DoneMsg{Saved: false} }
	}

	return m, cmd
}

// save persists the configuration file and the secrets, then closes
// the view.
func (m Model) save() (Model, tea.Cmd) {
	m.cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(m.formBaseURL), "/")
	m.cfg.Email.Enabled = m.formEmailEnabled
	m.cfg.Email.Host = m.formIMAPHost
	m.cfg.Email.Port = m.formIMAPPort
	m.cfg.Email.Username = m.formUsername
	m.cfg.Email.TLS = m.formTLS

	if err := credential.Set(credential.KeyAccessToken, m.formAccessToken); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving access token: %v", err)
		return m, nil
	}
	if m.formRefreshToken != "" {
		if err := credential.Set(credential.KeyRefreshToken, m.formRefreshToken); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving refresh token: %v", err)
			return m, nil
		}
	}
	if m.formEmailEnabled {
		if err := credential.Set(credential.KeyIMAPPassword, m.formPassword); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving mailbox password: %v", err)
			return m, nil
		}
	}

	if err := model.SaveConfig(m.configPath, m.cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error writing config: %v", err)
		return m, nil
	}

	return m, func() tea.Msg { return DoneMsg{Saved: true} }
}

// View renders the setup form.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Setup")
	body := m.form.View()

	if m.statusMsg != "" {
		body = lipgloss.JoinVertical(
			lipgloss.Left,
			body,
			theme.ErrorStyle.Render(m.statusMsg),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, "", body)
}

// formWidth bounds the form width to something readable.
func (m Model) formWidth() int {
	w := m.width - 4
	if w > 72 {
		w = 72
	}
	if w < 40 {
		w = 40
	}
	return w
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
