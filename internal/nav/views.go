package nav

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/otavio/vigia/internal/component"
)

var (
	orgStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	crumbStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	currentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	qualifierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	passedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1)
	activeTabStyle = tabStyle.Bold(true).Underline(true)
)

const crumbSep = " › "

// HeaderView renders the organization and breadcrumb path.
var HeaderView Subview = SubviewFunc(renderHeader)

// MetaView renders background task status and the last analysis.
var MetaView Subview = SubviewFunc(renderMeta)

// MenuView renders the section tabs and the branch selector.
var MenuView Subview = SubviewFunc(renderMenu)

func renderHeader(p Props) string {
	var parts []string
	if p.Component.Organization != "" {
		parts = append(parts, orgStyle.Render(p.Component.Organization))
	}

	crumbs := p.Component.Breadcrumbs
	if len(crumbs) == 0 {
		crumbs = []component.Breadcrumb{{Key: p.Component.Key, Name: p.Component.Name, Qualifier: p.Component.Qualifier}}
	}
	for i, b := range crumbs {
		if i == len(crumbs)-1 {
			parts = append(parts, currentStyle.Render(b.Name))
		} else {
			parts = append(parts, crumbStyle.Render(b.Name))
		}
	}

	line := strings.Join(parts, crumbSep)
	return line + "  " + qualifierStyle.Render("("+component.QualifierLabel(p.Component.Qualifier)+")")
}

func renderMeta(p Props) string {
	var parts []string

	switch {
	case p.IsInProgress:
		parts = append(parts, progressStyle.Render("● Background task in progress"))
	case p.IsPending:
		parts = append(parts, pendingStyle.Render("○ Background task pending"))
	}

	if p.IsFailed {
		msg := "✗ Last analysis failed"
		if p.Current != nil && p.Current.ErrorMessage != nil && *p.Current.ErrorMessage != "" {
			msg += ": " + firstLine(*p.Current.ErrorMessage)
		}
		parts = append(parts, failedStyle.Render(msg))
	}

	switch p.QualityGate {
	case "OK":
		parts = append(parts, passedStyle.Render("✓ Quality gate passed"))
	case "ERROR":
		parts = append(parts, failedStyle.Render("✗ Quality gate failed"))
	}

	if p.Current != nil && p.Current.ExecutedAt != nil {
		parts = append(parts, dimStyle.Render("Last analysis: "+p.Current.ExecutedAt.Local().Format("2006-01-02 15:04")))
	}

	switch {
	case p.Phase == PhaseLoading && len(parts) == 0:
		parts = append(parts, dimStyle.Render("Loading status…"))
	case p.Phase == PhaseFailed && p.Err != nil:
		parts = append(parts, failedStyle.Render("! Status unavailable: "+firstLine(p.Err.Error())))
	case p.Phase == PhaseReady && len(parts) == 0:
		parts = append(parts, dimStyle.Render("No analysis yet"))
	}

	return strings.Join(parts, "   ")
}

var menuTabs = []string{"Overview", "Issues", "Measures", "Code", "Activity"}

func renderMenu(p Props) string {
	active := activeTab(p.Location.Pathname)
	tabs := make([]string, 0, len(menuTabs))
	for _, t := range menuTabs {
		if t == active {
			tabs = append(tabs, activeTabStyle.Render(t))
		} else {
			tabs = append(tabs, tabStyle.Render(t))
		}
	}

	branch := p.Location.Branch()
	if branch == "" {
		branch = "main"
	}
	branchInfo := "⎇ " + branch
	if n := len(p.Branches); n > 0 {
		branchInfo += fmt.Sprintf(" (%d %s)", n, plural(n, "branch", "branches"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, "  ", dimStyle.Render(branchInfo))...)
}

// activeTab maps a location path such as "/component_measures" to a tab label.
func activeTab(pathname string) string {
	p := strings.ToLower(strings.Trim(pathname, "/"))
	switch {
	case strings.HasPrefix(p, "project/issues"), strings.HasPrefix(p, "issues"):
		return "Issues"
	case strings.HasPrefix(p, "component_measures"), strings.HasPrefix(p, "measures"):
		return "Measures"
	case strings.HasPrefix(p, "code"):
		return "Code"
	case strings.HasPrefix(p, "project/activity"), strings.HasPrefix(p, "activity"):
		return "Activity"
	default:
		return "Overview"
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
