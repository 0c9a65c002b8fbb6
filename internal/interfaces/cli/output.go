package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"garagelink.app/client/internal/auth"
	"garagelink.app/client/internal/core/domain"
	httpinfra "garagelink.app/client/internal/infrastructure/http"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(12)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

type statusView struct {
	Identity  string
	Endpoint  string
	Signed    bool
	UserID    string
	UserName  string
	Role      string
	Verdict   auth.Verdict
	ExpiresAt time.Time
	Now       time.Time
}

func renderStatus(v statusView) string {
	rows := []string{titleStyle.Render("GarageLink session")}
	row := func(label, value string) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
	}

	row("App", v.Identity)
	row("Endpoint", v.Endpoint)
	if !v.Signed {
		row("Session", badStyle.Render("signed out"))
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	row("Session", okStyle.Render("signed in"))
	user := v.UserID
	if v.UserName != "" {
		user = fmt.Sprintf("%s (%s, %s)", v.UserName, v.Role, v.UserID)
	}
	row("User", user)

	token := tokenLabel(v.Verdict)
	if !v.ExpiresAt.IsZero() {
		left := v.ExpiresAt.Sub(v.Now).Round(time.Second)
		if left > 0 {
			token += fmt.Sprintf(" · expires in %s", left)
		} else {
			token += fmt.Sprintf(" · expired %s ago", -left)
		}
	}
	row("Token", token)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func tokenLabel(v auth.Verdict) string {
	switch v {
	case auth.VerdictUsable:
		return okStyle.Render("fresh")
	case auth.VerdictPreRefresh:
		return warnStyle.Render("refresh due")
	default:
		return badStyle.Render("needs refresh")
	}
}

// describeError turns known failures into a message a user can act on.
func describeError(err error) string {
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrRefreshFailed):
		return "your session has ended, run 'garagelink login'"
	case errors.Is(err, domain.ErrRefreshTransport):
		return "could not reach the server to renew your session, try again shortly"
	case errors.Is(err, domain.ErrRetryExhausted):
		return "the server keeps rejecting this session, run 'garagelink login'"
	case errors.Is(err, httpinfra.ErrCircuitOpen):
		return "the marketplace API is unavailable, try again shortly"
	case errors.As(err, &apiErr):
		return strings.TrimSpace(apiErr.Error())
	default:
		return err.Error()
	}
}
