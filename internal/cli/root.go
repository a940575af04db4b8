// Package cli implements the agentstudio command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/logging"
)

// Set by the root command before any subcommand runs.
var (
	cfgFile  string
	logLevel string
	format   string

	paths config.Paths
	log   *logging.Logger
)

// defaultCLILevel keeps one-shot commands quiet unless asked.
const defaultCLILevel = "warn"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentstudio",
		Short: "Design and test Gemini agent personas",
		Long: `agentstudio keeps a collection of agent personas. It can draft a persona
from a one-line description with Gemini and lets you chat with an agent
before you ship it. "agentstudio gateway run" serves the same studio to a
browser UI.`,
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $AGENTSTUDIO_HOME/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "trace, debug, info, warn, error or silent")
	flags.StringVar(&format, "format", "", "output format: table, json or plain (table on a terminal)")

	root.AddCommand(
		newAgentCmd(),
		newSuggestCmd(),
		newChatCmd(),
		newGatewayCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func setup(cmd *cobra.Command, _ []string) error {
	p, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		p.Config = cfgFile
	}
	paths = p

	level := logLevel
	if level == "" {
		level = defaultCLILevel
	}
	log = logging.New(cmd.ErrOrStderr(), level)
	return nil
}

// Execute runs agentstudio with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}
