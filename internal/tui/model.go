package tui

import (
	"context"

	"llmfoundry/internal/config"
	"llmfoundry/internal/llm"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenMainMenu screen = iota
	screenModelList
	screenAzureConfig
	screenPromptEditor
	screenFoundryConfig
)

// RegistryLoader builds the model registry for the browse screen.
type RegistryLoader func(ctx context.Context, cfg *config.Config) (*llm.Registry, error)

// modelRow is one line of the browse screen.
type modelRow struct {
	id      string
	display string
	state   string
}

type modelsLoadedMsg struct {
	rows []modelRow
	err  error
}

type model struct {
	screen    screen
	cfgFile   string
	config    *config.Config
	configErr error
	loader    RegistryLoader
	status    string
	// Main menu
	menuCursor int
	menuItems  []menuItem
	// Model browser
	modelRows    []modelRow
	modelCursor  int
	modelsErr    error
	modelsLoaded bool
	spinner      spinner.Model
	// Azure endpoint form
	endpointInput textinput.Model
	// Foundry Local toggles
	toggleCursor int
	// Prompt editor
	promptTextarea textarea.Model
	// Help
	help help.Model
	keys keyMap
	// Styling
	style *styles
	// Dimensions
	width  int
	height int
}
type menuItem struct {
	title       string
	description string
	target      screen
}
type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding
	Quit  key.Binding
	Save  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Back, k.Quit}
}
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Enter, k.Back, k.Save, k.Quit},
	}
}

type styles struct {
	title       lipgloss.Style
	subtitle    lipgloss.Style
	menuItem    lipgloss.Style
	menuCursor  lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
	error       lipgloss.Style
	success     lipgloss.Style
	instruction lipgloss.Style
}

func newStyles() *styles {
	return &styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).MarginBottom(1),
		subtitle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).MarginBottom(1),
		menuItem:    lipgloss.NewStyle().PaddingLeft(2),
		menuCursor:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		label:       lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")),
		value:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		error:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
		success:     lipgloss.NewStyle().Foreground(lipgloss.Color("#55FF55")),
		instruction: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1),
	}
}
