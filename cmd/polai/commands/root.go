// Package commands defines all Cobra CLI commands for the polai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/polai/polai-go/internal/audit"
	"github.com/polai/polai-go/internal/config"
	"github.com/polai/polai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "polai",
		Short: "polai — question answering over your policy documents, with citations",
		Long: `polai is a local-first retrieval-augmented assistant for policy and
product documentation.

It indexes Markdown and plain-text documents into a vector store, retrieves
the most relevant passages for a question, and generates a grounded answer
with citations back to the source sections. Without an LLM backend configured
it falls back to a deterministic extractive answer so the pipeline is usable
end to end offline.

Generation backend is selected via the GENERATOR_BACKEND environment variable
or a YAML config file (~/.polai/config.yaml).
See 'polai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.polai/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
