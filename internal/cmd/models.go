package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"llmfoundry/internal/config"
	"llmfoundry/internal/llm"
)

// loadRegistry runs every enabled plugin. Plugin failures are returned, but
// whatever registered successfully is still usable. It does not log, so the
// TUI can call it while it owns the terminal.
func loadRegistry(ctx context.Context, cfg *config.Config) (*llm.Registry, error) {
	plugins, err := llm.CreatePlugins(cfg)
	if err != nil {
		return nil, err
	}

	reg := llm.NewRegistry()
	return reg, reg.Load(ctx, plugins...)
}

// warnLoadErrors logs each plugin failure on its own line.
func warnLoadErrors(err error) {
	if err == nil {
		return
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		log.Warn(line)
	}
}

type modelInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Display      string            `json:"display"`
	Aliases      []string          `json:"aliases,omitempty"`
	State        string            `json:"state,omitempty"`
	Capabilities *llm.Capabilities `json:"capabilities,omitempty"`
	Default      bool              `json:"default,omitempty"`
}

func describeModels(reg *llm.Registry, cfg *config.Config, embeddings bool) []modelInfo {
	var out []modelInfo
	if embeddings {
		for _, m := range reg.EmbeddingModels() {
			info := modelInfo{
				ID:      m.ModelID(),
				Display: m.String(),
				Aliases: reg.Aliases(m.ModelID()),
				Default: m.ModelID() == cfg.DefaultEmbeddingModel,
			}
			if s, ok := m.(llm.Stater); ok {
				info.State = s.State()
			}
			out = append(out, info)
		}
		return out
	}

	for _, m := range reg.Models() {
		caps := m.Capabilities()
		info := modelInfo{
			ID:           m.ModelID(),
			Name:         m.ModelName(),
			Display:      m.String(),
			Aliases:      reg.Aliases(m.ModelID()),
			Capabilities: &caps,
			Default:      m.ModelID() == cfg.DefaultModel,
		}
		if s, ok := m.(llm.Stater); ok {
			info.State = s.State()
		}
		out = append(out, info)
	}
	return out
}

func printModels(w io.Writer, models []modelInfo, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(models, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal models: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for _, m := range models {
		line := m.Display
		if len(m.Aliases) > 0 {
			line += fmt.Sprintf(" (aliases: %s)", strings.Join(m.Aliases, ", "))
		}
		if m.State != "" {
			line += " [" + m.State + "]"
		}
		if m.Default {
			line += " *"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

var (
	modelsEmbeddings bool
	modelsJSON       bool
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Short:   "List registered models",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		reg, loadErr := loadRegistry(cmd.Context(), cfg)
		warnLoadErrors(loadErr)
		if reg == nil {
			return loadErr
		}

		models := describeModels(reg, cfg, modelsEmbeddings)
		if len(models) == 0 && loadErr != nil {
			return loadErr
		}
		return printModels(cmd.OutOrStdout(), models, modelsJSON)
	},
}

var modelsDefaultCmd = &cobra.Command{
	Use:   "default [model]",
	Short: "Show or set the default model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if len(args) == 0 {
			current := cfg.DefaultModel
			if modelsEmbeddings {
				current = cfg.DefaultEmbeddingModel
			}
			if current == "" {
				current = "(none)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), current)
			return nil
		}

		reg, loadErr := loadRegistry(cmd.Context(), cfg)
		warnLoadErrors(loadErr)
		if reg == nil {
			return loadErr
		}
		if modelsEmbeddings {
			m, err := reg.GetEmbedding(args[0])
			if err != nil {
				return withLoadError(err, loadErr)
			}
			cfg.DefaultEmbeddingModel = m.ModelID()
		} else {
			m, err := reg.Get(args[0])
			if err != nil {
				return withLoadError(err, loadErr)
			}
			cfg.DefaultModel = m.ModelID()
		}
		return config.Save(cfg)
	},
}

// withLoadError attaches plugin failures to an unknown-model error, since a
// failed plugin is the usual reason a model is missing.
func withLoadError(err, loadErr error) error {
	if loadErr == nil || !errors.Is(err, llm.ErrUnknownModel) {
		return err
	}
	return fmt.Errorf("%w (some model sources failed: %v)", err, loadErr)
}

func init() {
	modelsCmd.PersistentFlags().BoolVar(&modelsEmbeddings, "embeddings", false, "Operate on embedding models")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	modelsCmd.AddCommand(modelsDefaultCmd)
}
