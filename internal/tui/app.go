package tui

import (
	"context"
	"errors"

	"llmfoundry/internal/config"
	"llmfoundry/internal/llm"
	"llmfoundry/internal/logging"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func NewModel(cfgFile string, loader RegistryLoader) model {
	cfg, err := config.Load(cfgFile)

	endpointInput := textinput.New()
	endpointInput.Placeholder = "https://<xxx>.services.ai.azure.com/api/projects/<project-name>"
	endpointInput.CharLimit = 512
	endpointInput.Width = 80

	ta := textarea.New()
	ta.SetHeight(15)
	ta.SetWidth(80)
	ta.ShowLineNumbers = true
	ta.KeyMap.InsertNewline.SetEnabled(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		screen:         screenMainMenu,
		cfgFile:        cfgFile,
		config:         cfg,
		configErr:      err,
		loader:         loader,
		endpointInput:  endpointInput,
		promptTextarea: ta,
		spinner:        sp,
		help:           help.New(),
		keys:           defaultKeyMap(),
		style:          newStyles(),
	}

	m.updateMenuItems()

	return m
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
	}
}

func (m *model) updateMenuItems() {
	m.menuItems = []menuItem{
		{
			title:       "Browse Models",
			description: "List registered models and pick the default",
			target:      screenModelList,
		},
		{
			title:       "Configure Azure Endpoint",
			description: "Set the AI Foundry project endpoint",
			target:      screenAzureConfig,
		},
		{
			title:       "Foundry Local Settings",
			description: "Enable the local model source and service auto-start",
			target:      screenFoundryConfig,
		},
		{
			title:       "Edit System Prompt",
			description: "Set the system prompt sent with every prompt",
			target:      screenPromptEditor,
		},
		{
			title:       "Exit",
			description: "Save and exit configuration",
			target:      -1,
		},
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// loadModels builds the registry off the UI goroutine.
func (m model) loadModels() tea.Cmd {
	cfg := m.config
	cfgErr := m.configErr
	loader := m.loader
	return func() tea.Msg {
		if loader == nil {
			return modelsLoadedMsg{}
		}
		if cfg == nil {
			if cfgErr == nil {
				cfgErr = errors.New("no configuration loaded")
			}
			return modelsLoadedMsg{err: cfgErr}
		}
		reg, err := loader(context.Background(), cfg)
		if reg == nil {
			return modelsLoadedMsg{err: err}
		}
		var rows []modelRow
		for _, mdl := range reg.Models() {
			row := modelRow{id: mdl.ModelID(), display: mdl.String()}
			if s, ok := mdl.(llm.Stater); ok {
				row.state = s.State()
			}
			rows = append(rows, row)
		}
		return modelsLoadedMsg{rows: rows, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.screen {
		case screenMainMenu:
			return m.updateMainMenu(msg)
		case screenModelList:
			return m.updateModelList(msg)
		case screenAzureConfig:
			return m.updateAzureConfig(msg)
		case screenFoundryConfig:
			return m.updateFoundryConfig(msg)
		case screenPromptEditor:
			return m.updatePromptEditor(msg)
		}

	case modelsLoadedMsg:
		m.modelRows = msg.rows
		m.modelsErr = msg.err
		m.modelsLoaded = true
		m.modelCursor = 0
		return m, nil

	case spinner.TickMsg:
		if m.modelsLoaded {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.promptTextarea.SetWidth(msg.Width - 4)
		m.promptTextarea.SetHeight(m.height - 10)
	}

	switch m.screen {
	case screenAzureConfig:
		m.endpointInput, cmd = m.endpointInput.Update(msg)
	case screenPromptEditor:
		m.promptTextarea, cmd = m.promptTextarea.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string

	switch m.screen {
	case screenMainMenu:
		content = m.viewMainMenu()
	case screenModelList:
		content = m.viewModelList()
	case screenAzureConfig:
		content = m.viewAzureConfig()
	case screenFoundryConfig:
		content = m.viewFoundryConfig()
	case screenPromptEditor:
		content = m.viewPromptEditor()
	}

	if m.status != "" {
		content += "\n" + m.style.label.Render(m.status) + "\n"
	}

	helpView := m.help.View(m.keys)
	return content + "\n" + helpView
}

// Run starts the TUI. Log output to stderr is dropped while it owns the
// terminal.
func Run(cfgFile string, loader RegistryLoader) error {
	resume := logging.Suspend()
	defer resume()

	m := NewModel(cfgFile, loader)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *model) ensureConfig() {
	if m.config == nil {
		m.config = &config.Config{}
	}
}

func (m *model) saveConfig() error {
	m.ensureConfig()
	if err := config.Save(m.config); err != nil {
		m.status = "Failed to save: " + err.Error()
		return err
	}
	m.status = "Saved to " + m.config.Path()
	return nil
}
