package nav

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run drives m in a terminal program until the user quits, then tears it down.
func Run(m *Model, opts ...tea.ProgramOption) error {
	defer m.Close()
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("running nav: %w", err)
	}
	return nil
}
