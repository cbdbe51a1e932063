package component

import "strings"

// Qualifiers.
const (
	QualifierProject      = "TRK"
	QualifierModule       = "BRC"
	QualifierDirectory    = "DIR"
	QualifierFile         = "FIL"
	QualifierPortfolio    = "VW"
	QualifierSubPortfolio = "SVW"
	QualifierApplication  = "APP"
)

// Breadcrumb is one step of the path from the root project down to a component.
type Breadcrumb struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Qualifier string `json:"qualifier"`
}

// Component identifies a dashboard subject: a project, module, directory or file.
type Component struct {
	Key          string       `json:"key"`
	Name         string       `json:"name"`
	Qualifier    string       `json:"qualifier"`
	Organization string       `json:"organization,omitempty"`
	Breadcrumbs  []Breadcrumb `json:"breadcrumbs"`
}

// ValidQualifier reports whether q is a known qualifier.
func ValidQualifier(q string) bool {
	switch q {
	case QualifierProject, QualifierModule, QualifierDirectory, QualifierFile,
		QualifierPortfolio, QualifierSubPortfolio, QualifierApplication:
		return true
	default:
		return false
	}
}

// QualifierLabel returns a human label for a qualifier.
func QualifierLabel(q string) string {
	switch q {
	case QualifierProject:
		return "Project"
	case QualifierModule:
		return "Module"
	case QualifierDirectory:
		return "Directory"
	case QualifierFile:
		return "File"
	case QualifierPortfolio:
		return "Portfolio"
	case QualifierSubPortfolio:
		return "Sub-portfolio"
	case QualifierApplication:
		return "Application"
	default:
		return strings.ToUpper(q)
	}
}

// Parent returns the component one breadcrumb up, or false at the root.
// The parent keeps the organization and the truncated breadcrumb path.
func (c Component) Parent() (Component, bool) {
	if len(c.Breadcrumbs) < 2 {
		return Component{}, false
	}
	crumbs := c.Breadcrumbs[:len(c.Breadcrumbs)-1]
	last := crumbs[len(crumbs)-1]
	return Component{
		Key:          last.Key,
		Name:         last.Name,
		Qualifier:    last.Qualifier,
		Organization: c.Organization,
		Breadcrumbs:  append([]Breadcrumb(nil), crumbs...),
	}, true
}

// Path renders the breadcrumbs joined by sep, falling back to the component name.
func (c Component) Path(sep string) string {
	if len(c.Breadcrumbs) == 0 {
		return c.Name
	}
	names := make([]string, 0, len(c.Breadcrumbs))
	for _, b := range c.Breadcrumbs {
		names = append(names, b.Name)
	}
	return strings.Join(names, sep)
}
