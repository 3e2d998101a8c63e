package cmd

import (
	"fmt"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"llmfoundry/internal/config"
	"llmfoundry/internal/llm"
	"llmfoundry/internal/prompt"
)

var (
	promptModel       string
	promptSystem      string
	promptSchema      string
	promptTemperature float64
	promptMaxTokens   int
	promptNoStream    bool
	promptUsage       bool
)

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	text, err := prompt.Build(args, prompt.Stdin())
	if err != nil {
		return err
	}

	modelID := promptModel
	if modelID == "" {
		modelID = cfg.DefaultModel
	}
	if modelID == "" {
		return fmt.Errorf("no model given: pass -m or run 'llmfoundry models default <model>'")
	}

	schemaData, err := prompt.ReadSchema(promptSchema)
	if err != nil {
		return err
	}
	var schema *prompt.Schema
	if len(schemaData) > 0 {
		if schema, err = prompt.CompileSchema(schemaData); err != nil {
			return err
		}
	}

	reg, loadErr := loadRegistry(cmd.Context(), cfg)
	warnLoadErrors(loadErr)
	if reg == nil {
		return loadErr
	}
	model, err := reg.Get(modelID)
	if err != nil {
		return withLoadError(err, loadErr)
	}

	system := promptSystem
	if system == "" {
		system = cfg.GetSystemPrompt()
	}

	out := cmd.OutOrStdout()
	p := &llm.Prompt{
		Text:      text,
		System:    system,
		MaxTokens: promptMaxTokens,
		Stream:    !promptNoStream && model.Capabilities().Streaming,
		OnChunk: func(chunk string) error {
			_, err := fmt.Fprint(out, chunk)
			return err
		},
	}
	if cmd.Flags().Changed("temperature") {
		p.Temperature = &promptTemperature
	}
	if schema != nil {
		p.Schema = schema.Raw()
	}

	resp, err := model.Prompt(cmd.Context(), p)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", model.ModelID(), err)
	}
	fmt.Fprintln(out)

	if schema != nil {
		if err := schema.Check(resp.Text); err != nil {
			log.Warn(err)
		}
	}

	if promptUsage {
		fmt.Fprintf(cmd.ErrOrStderr(), "Token usage: %d input, %d output\n", resp.Usage.Input, resp.Usage.Output)
	}
	return nil
}

var promptCmd = &cobra.Command{
	Use:     "prompt [text]",
	Short:   "Run a prompt against a model",
	Aliases: []string{"p"},
	RunE:    runPrompt,
}

var embedModel string

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	text, err := prompt.Build(args, prompt.Stdin())
	if err != nil {
		return err
	}

	modelID := embedModel
	if modelID == "" {
		modelID = cfg.DefaultEmbeddingModel
	}
	if modelID == "" {
		return fmt.Errorf("no embedding model given: pass -m or run 'llmfoundry models default --embeddings <model>'")
	}

	reg, loadErr := loadRegistry(cmd.Context(), cfg)
	warnLoadErrors(loadErr)
	if reg == nil {
		return loadErr
	}
	model, err := reg.GetEmbedding(modelID)
	if err != nil {
		return withLoadError(err, loadErr)
	}

	vectors, err := model.Embed(cmd.Context(), []string{text})
	if err != nil {
		return fmt.Errorf("failed to embed with %s: %w", model.ModelID(), err)
	}

	data, err := json.Marshal(vectors[0])
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

var embedCmd = &cobra.Command{
	Use:     "embed [text]",
	Short:   "Embed text with an embedding model",
	Aliases: []string{"e"},
	RunE:    runEmbed,
}

func init() {
	promptCmd.Flags().StringVarP(&promptModel, "model", "m", "", "Model ID or alias (default: default_model)")
	promptCmd.Flags().StringVarP(&promptSystem, "system", "s", "", "System prompt")
	promptCmd.Flags().StringVar(&promptSchema, "schema", "", "JSON schema, inline or path to a file")
	promptCmd.Flags().Float64Var(&promptTemperature, "temperature", llm.DefaultTemperature, "Sampling temperature")
	promptCmd.Flags().IntVar(&promptMaxTokens, "max-tokens", llm.DefaultMaxTokens, "Maximum output tokens (0 = model default)")
	promptCmd.Flags().BoolVar(&promptNoStream, "no-stream", false, "Wait for the full response instead of streaming")
	promptCmd.Flags().BoolVarP(&promptUsage, "usage", "u", false, "Print token usage to stderr")

	embedCmd.Flags().StringVarP(&embedModel, "model", "m", "", "Embedding model ID or alias (default: default_embedding_model)")
}
