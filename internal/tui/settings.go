package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"llmfoundry/internal/foundry"
)

func (m model) updateAzureConfig(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.ensureConfig()
		m.config.Azure.Endpoint = strings.TrimSpace(m.endpointInput.Value())
		if err := m.saveConfig(); err != nil {
			return m, nil
		}
		// The registry depends on the endpoint
		m.modelsLoaded = false
		m.endpointInput.Blur()
		m.screen = screenMainMenu
		return m, nil
	case "esc":
		m.endpointInput.Blur()
		m.screen = screenMainMenu
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.endpointInput, cmd = m.endpointInput.Update(msg)
	return m, cmd
}

func (m model) viewAzureConfig() string {
	s := m.style

	title := s.title.Render("Configure Azure AI Foundry")
	label := s.label.Render("Project endpoint:")

	return title + "\n\n" +
		label + "\n" + m.endpointInput.View() + "\n\n" +
		s.instruction.Render("enter: save • esc: back") + "\n\n" +
		s.label.Render("Credentials come from the Azure CLI, environment or managed identity,\n") +
		s.label.Render("falling back to a browser login when azure.interactive is on.")
}

func (m model) updateFoundryConfig(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.toggleCursor > 0 {
			m.toggleCursor--
		}
	case "down", "j":
		if m.toggleCursor < 1 {
			m.toggleCursor++
		}
	case "enter":
		// Toggle the selected option
		m.ensureConfig()

		switch m.toggleCursor {
		case 0:
			m.config.Foundry.Enabled = !m.config.Foundry.Enabled
		case 1:
			m.config.Foundry.AutoStart = !m.config.Foundry.AutoStart
		}

		if err := m.saveConfig(); err != nil {
			return m, nil
		}
		m.modelsLoaded = false
	case "esc":
		m.screen = screenMainMenu
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) viewFoundryConfig() string {
	s := m.style

	title := s.title.Render("Foundry Local")
	subtitle := s.subtitle.Render("Configure the on-device model source")

	toggle := func(i int, name string, on bool) string {
		status := s.value.Render("disabled")
		if on {
			status = s.success.Render("enabled")
		}
		cursor := "  "
		if m.toggleCursor == i {
			cursor = s.menuCursor.Render("> ")
		}
		return fmt.Sprintf("%s%s %s", cursor, s.menuItem.Render(name), status)
	}

	enabled, autoStart := false, false
	if m.config != nil {
		enabled = m.config.Foundry.Enabled
		autoStart = m.config.Foundry.AutoStart
	}

	cli := ""
	if !foundry.IsInstalled() {
		cli = s.error.Render("foundry CLI not found on PATH; set foundry.endpoint or install Foundry Local") + "\n\n"
	}

	return title + "\n" + subtitle + "\n\n" + cli +
		toggle(0, "Register Foundry Local models", enabled) + "\n" +
		toggle(1, "Start the service when needed", autoStart) + "\n\n" +
		s.instruction.Render("↑↓: navigate • enter: toggle • esc: back • q: quit") + "\n\n" +
		s.label.Render("Local models are downloaded and loaded the first time they are prompted.")
}
