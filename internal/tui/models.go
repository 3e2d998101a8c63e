package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) updateModelList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.modelCursor > 0 {
			m.modelCursor--
		}
	case "down", "j":
		if m.modelCursor < len(m.modelRows)-1 {
			m.modelCursor++
		}
	case "enter":
		if len(m.modelRows) == 0 {
			return m, nil
		}
		m.ensureConfig()
		m.config.DefaultModel = m.modelRows[m.modelCursor].id
		_ = m.saveConfig()
	case "r":
		m.modelsLoaded = false
		m.modelRows = nil
		m.modelsErr = nil
		return m, tea.Batch(m.spinner.Tick, m.loadModels())
	case "esc":
		m.screen = screenMainMenu
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) viewModelList() string {
	s := m.style

	title := s.title.Render("Registered Models")
	subtitle := s.subtitle.Render("Azure AI Foundry deployments and Foundry Local models")

	if !m.modelsLoaded {
		return title + "\n" + subtitle + "\n\n" + m.spinner.View() + " Discovering models..."
	}

	var items string
	for i, row := range m.modelRows {
		cursor := "  "
		if m.modelCursor == i {
			cursor = s.menuCursor.Render("> ")
		}

		status := ""
		if row.state != "" {
			status = s.value.Render("[" + row.state + "]")
		}
		if m.config != nil && m.config.DefaultModel == row.id {
			status += " " + s.success.Render("default")
		}

		items += fmt.Sprintf("%s%s %s\n", cursor, s.menuItem.Render(row.display), status)
	}
	if len(m.modelRows) == 0 {
		items = s.label.Render("No models registered.") + "\n"
	}
	if m.modelsErr != nil {
		items += "\n" + s.error.Render(m.modelsErr.Error()) + "\n"
	}

	return title + "\n" + subtitle + "\n\n" + items + "\n" + s.instruction.Render("enter: set default • r: refresh • esc: back • q: quit")
}
