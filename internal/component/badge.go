package component

import "github.com/charmbracelet/lipgloss"

// Badge classes used by the colour helpers.
const (
	ClassPrimary   = "primary"
	ClassSecondary = "secondary"
	ClassInfo      = "info"
	ClassLight     = "light"
	ClassWarning   = "warning"
	ClassDanger    = "danger"
)

var badgeStyles = map[string]lipgloss.Style{
	ClassPrimary:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("27")),
	ClassSecondary: lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("242")),
	ClassInfo:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("30")),
	ClassLight:     lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("254")),
	ClassWarning:   lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("220")),
	ClassDanger:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("160")),
}

// Badge renders text as a padded label in the colours of class.
func Badge(class string, text any) string {
	st, ok := badgeStyles[class]
	if !ok {
		st = badgeStyles[ClassSecondary]
	}
	return st.Padding(0, 1).Render(toString(text))
}
