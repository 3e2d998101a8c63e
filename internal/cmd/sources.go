package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"llmfoundry/internal/azure"
	"llmfoundry/internal/config"
	"llmfoundry/internal/discovery"
	"llmfoundry/internal/foundry"
	"llmfoundry/internal/llm"
)

var azureCmd = &cobra.Command{
	Use:   "azure",
	Short: "Inspect the Azure AI Foundry project",
}

var azureDeploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "List the project's model deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p, err := llm.CreatePlugin(llm.PluginAzure, cfg)
		if err != nil {
			return err
		}
		deployments, err := p.(*azure.Plugin).Deployments(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODEL\tVERSION\tPUBLISHER\tCAPABILITIES")
		for _, d := range deployments {
			var caps []string
			for _, c := range []string{azure.CapabilityChatCompletion, azure.CapabilityEmbeddings} {
				if d.HasCapability(c) {
					caps = append(caps, c)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.ModelName, d.ModelVersion, d.ModelPublisher, strings.Join(caps, ","))
		}
		return w.Flush()
	},
}

var foundryCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Manage Foundry Local models",
}

// foundryPlugin works even when the source is disabled for registration.
func foundryPlugin(cfg *config.Config) *foundry.Plugin {
	return foundry.NewPlugin(cfg.Foundry)
}

func foundryTarget(ctx context.Context, p *foundry.Plugin, name string) (*foundry.Manager, foundry.CatalogModel, *foundry.Inventory, error) {
	inv, err := p.Inventory(ctx)
	if err != nil {
		return nil, foundry.CatalogModel{}, nil, err
	}
	mgr, err := p.Manager(ctx)
	if err != nil {
		return nil, foundry.CatalogModel{}, nil, err
	}
	entry, ok := inv.Lookup(name)
	if !ok {
		return nil, foundry.CatalogModel{}, nil, fmt.Errorf("%w: %s", llm.ErrUnknownModel, name)
	}
	return mgr, entry, inv, nil
}

var foundryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog models and their local state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p := foundryPlugin(cfg)
		inv, err := p.Inventory(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ALIAS\tMODEL ID\tDEVICE\tTASK\tSIZE\tSTATE")
		for _, m := range inv.Catalog {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", m.Alias, m.Name, m.Runtime.DeviceType, m.Task, formatSize(m.FileSizeMB), inv.State(m.Name))
		}
		return w.Flush()
	},
}

func formatSize(mb int64) string {
	if mb <= 0 {
		return "-"
	}
	if mb >= 1024 {
		return fmt.Sprintf("%.2f GB", float64(mb)/1024)
	}
	return fmt.Sprintf("%d MB", mb)
}

var foundryDownloadCmd = &cobra.Command{
	Use:   "download [model]",
	Short: "Download a model into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p := foundryPlugin(cfg)
		mgr, entry, inv, err := foundryTarget(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		if inv.State(entry.Name) != foundry.StateAvailable {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already cached\n", entry.Name)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloading %s...\n", entry.Name)
		if err := mgr.Download(cmd.Context(), entry); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s downloaded\n", entry.Name)
		return nil
	},
}

var foundryLoadCmd = &cobra.Command{
	Use:   "load [model]",
	Short: "Load a cached model into memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p := foundryPlugin(cfg)
		mgr, entry, inv, err := foundryTarget(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		if inv.State(entry.Name) == foundry.StateAvailable {
			return fmt.Errorf("%s is not cached; run 'llmfoundry foundry download %s' first", entry.Name, args[0])
		}
		ttl := time.Duration(cfg.Foundry.LoadTTL) * time.Second
		if err := mgr.Load(cmd.Context(), entry.Name, ttl); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s loaded\n", entry.Name)
		return nil
	},
}

var unloadForce bool

var foundryUnloadCmd = &cobra.Command{
	Use:   "unload [model]",
	Short: "Unload a model from memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p := foundryPlugin(cfg)
		mgr, entry, _, err := foundryTarget(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		if err := mgr.Unload(cmd.Context(), entry.Name, unloadForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s unloaded\n", entry.Name)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage persisted discovery results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove persisted discovery results",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.GetCacheDir()
		if err != nil {
			return err
		}
		cache, err := discovery.NewCache(dir)
		if err != nil {
			return err
		}
		if err := cache.ClearAll(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Discovery cache cleared")
		return nil
	},
}

func init() {
	azureCmd.AddCommand(azureDeploymentsCmd)

	foundryUnloadCmd.Flags().BoolVar(&unloadForce, "force", false, "Unload even if the model is in use")
	foundryCmd.AddCommand(foundryListCmd)
	foundryCmd.AddCommand(foundryDownloadCmd)
	foundryCmd.AddCommand(foundryLoadCmd)
	foundryCmd.AddCommand(foundryUnloadCmd)

	cacheCmd.AddCommand(cacheClearCmd)
}
