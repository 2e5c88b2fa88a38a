package tui

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
	"github.com/felixgeelhaar/sciencepoint/internal/credential"
)

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("sciencepoint session"))
	b.WriteString("\n\n")

	if !m.state.IsAuthenticated {
		if m.ended {
			b.WriteString(m.styles.Muted.Render("Session ended."))
		} else {
			b.WriteString(m.styles.Muted.Render("Not logged in. Run 'sciencepoint auth login' first."))
		}
		b.WriteString("\n")
		b.WriteString(m.renderNotices())
		return b.String()
	}

	b.WriteString(m.renderSession())

	if m.warning != nil {
		b.WriteString("\n")
		b.WriteString(m.renderWarning())
		b.WriteString("\n")
	}

	b.WriteString(m.renderNotices())

	if !m.quitting {
		b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSession() string {
	user := m.state.User
	lines := []string{}
	if user != nil {
		lines = append(lines,
			m.field("User", fmt.Sprintf("%s (%s)", user.DisplayName(), user.Username)),
			m.field("Role", user.Role.String()),
		)
	}
	lines = append(lines, m.field("Expires in", credential.FormatRemaining(m.remaining())))
	if m.state.RememberMe {
		lines = append(lines, m.field("Remember me", "yes"))
	}
	if m.refreshing && m.warning == nil {
		lines = append(lines, m.styles.Muted.Render("Checking session..."))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) field(label, value string) string {
	return m.styles.Label.Render(fmt.Sprintf("%-12s", label+":")) + " " + value
}

// renderWarning renders the expiry warning box
func (m Model) renderWarning() string {
	var b strings.Builder
	b.WriteString(m.styles.Warning.Render("⚠ Your session will expire soon"))
	b.WriteString("\n\n")
	b.WriteString("Time remaining: " + m.styles.Title.Render(credential.FormatRemaining(m.remaining())))
	b.WriteString("\n\n")
	if m.refreshing {
		b.WriteString(m.styles.Muted.Render("Extending session..."))
	} else {
		b.WriteString("[r] Extend Session   [l] Logout Now")
	}
	return m.styles.WarningBox.Render(b.String())
}

func (m Model) renderNotices() string {
	if len(m.notices) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, n := range m.notices {
		b.WriteString(m.renderNotice(n))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderNotice(n auth.Notice) string {
	switch n.Level {
	case auth.LevelSuccess:
		return m.styles.Success.Render("✓ " + n.Message)
	case auth.LevelWarning:
		return m.styles.Warning.Render("⚠ " + n.Message)
	case auth.LevelError:
		return m.styles.Error.Render("✗ " + n.Message)
	default:
		return m.styles.Info.Render("ℹ " + n.Message)
	}
}
