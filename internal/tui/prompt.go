package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) updatePromptEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		m.ensureConfig()
		m.config.SystemPrompt = m.promptTextarea.Value()
		if err := m.saveConfig(); err != nil {
			return m, nil
		}
		m.promptTextarea.Blur()
		m.screen = screenMainMenu
		return m, nil
	case "esc":
		m.promptTextarea.Blur()
		m.screen = screenMainMenu
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.promptTextarea, cmd = m.promptTextarea.Update(msg)
	return m, cmd
}

func (m model) viewPromptEditor() string {
	s := m.style

	title := s.title.Render("Edit System Prompt")
	subtitle := s.subtitle.Render("Sent as the system message unless -s is given")

	textareaView := m.promptTextarea.View()

	help := s.instruction.Render("ctrl+s: save • esc: back without saving • ctrl+c: quit")

	return title + "\n" + subtitle + "\n\n" + textareaView + "\n\n" + help
}
