package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/hooks"
	"github.com/soyeahso/agentstudio/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agentstudio status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentstudio %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			backend := cfg.Store.Backend
			if backend == "" {
				backend = "sqlite"
			}
			fmt.Fprintf(out, "Store:   backend=%s path=%s key=%s onCorrupt=%s\n",
				backend, paths.StorePath(cfg.Store), cfg.Store.Key, cfg.Store.OnCorrupt)

			if a, err := openApp(cmd.Context(), false); err != nil {
				fmt.Fprintf(out, "Agents:  error: %v\n", err)
			} else {
				fmt.Fprintf(out, "Agents:  %d\n", len(a.agents.List()))
				a.Close()
			}

			key := "(not set)"
			if cfg.LLM.APIKey != "" {
				key = "(set)"
			}
			fmt.Fprintf(out, "Gemini:  auth=%s endpoint=%s apiKey=%s suggestModel=%s timeout=%ds\n",
				cfg.LLM.Auth, cfg.LLM.Endpoint, key, cfg.LLM.SuggestModel, cfg.LLM.TimeoutSeconds)

			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)

			// Hooks
			hm := hooks.NewManager(log)
			if hm.RegisterConfig(cfg.Hooks) == 0 {
				fmt.Fprintln(out, "Hooks:   (none)")
			} else {
				var parts []string
				for _, event := range hooks.AllEvents {
					if n := hm.Count(event); n > 0 {
						parts = append(parts, fmt.Sprintf("%s=%d", event, n))
					}
				}
				fmt.Fprintf(out, "Hooks:   %s\n", strings.Join(parts, " "))
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
