package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) updateMainMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(m.menuItems)-1 {
			m.menuCursor++
		}
	case "enter":
		m.status = ""
		item := m.menuItems[m.menuCursor]
		switch item.target {
		case screenModelList:
			m.screen = screenModelList
			if !m.modelsLoaded {
				return m, tea.Batch(m.spinner.Tick, m.loadModels())
			}
		case screenAzureConfig:
			m.ensureConfig()
			m.endpointInput.SetValue(m.config.Azure.Endpoint)
			m.endpointInput.Focus()
			m.screen = screenAzureConfig
		case screenFoundryConfig:
			m.toggleCursor = 0
			m.screen = screenFoundryConfig
		case screenPromptEditor:
			m.ensureConfig()
			m.promptTextarea.SetValue(m.config.GetSystemPrompt())
			m.promptTextarea.Focus()
			m.screen = screenPromptEditor
		default:
			return m, tea.Quit
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) viewMainMenu() string {
	s := m.style

	title := s.title.Render("llmfoundry Configuration")
	subtitle := s.subtitle.Render("Select an option to configure")

	var menuItems string
	for i, item := range m.menuItems {
		cursor := "  "
		if m.menuCursor == i {
			cursor = s.menuCursor.Render("> ")
		}
		menuItems += fmt.Sprintf("%s%s\n%s\n\n", cursor, s.menuItem.Render(item.title), s.label.Render("   "+item.description))
	}

	if m.configErr != nil {
		menuItems += s.error.Render("Config error: "+m.configErr.Error()) + "\n"
	}

	return title + "\n" + subtitle + "\n\n" + menuItems
}
