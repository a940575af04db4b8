package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentstudio/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit config.yaml",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value, e.g. store.backend",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, path, err := loadKey(args[0])
				if err != nil {
					return err
				}
				v, ok := config.GetValueAtPath(raw, path)
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				return printValue(cmd.OutOrStdout(), v)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value; true/false and numbers are typed",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				value := parseValue(args[1])
				err := editKey(args[0], func(raw map[string]any, path []string) error {
					config.SetValueAtPath(raw, path, value)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove a value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := editKey(args[0], func(raw map[string]any, path []string) error {
					if !config.UnsetValueAtPath(raw, path) {
						return fmt.Errorf("key %q not found", args[0])
					}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective config with defaults and environment applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(paths.Config)
				if err != nil {
					return err
				}
				redact(&cfg)
				return printValue(cmd.OutOrStdout(), cfg)
			},
		},
		newConfigValidateCmd(),
	)
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			issues := config.Validate(&cfg)
			if len(issues) == 0 {
				fmt.Fprintln(out, "Config OK")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return fmt.Errorf("%d validation issue(s)", len(issues))
		},
	}
}

// loadKey parses a dotted key and reads the raw config document.
func loadKey(key string) (map[string]any, []string, error) {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return nil, nil, err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	return raw, path, nil
}

// editKey applies fn to the raw document and writes it back when fn succeeds.
func editKey(key string, fn func(raw map[string]any, path []string) error) error {
	raw, path, err := loadKey(key)
	if err != nil {
		return err
	}
	if err := fn(raw, path); err != nil {
		return err
	}
	return config.SaveRaw(paths.Config, raw)
}

const redacted = "(set)"

func redact(cfg *config.Config) {
	for _, s := range []*string{&cfg.LLM.APIKey, &cfg.Gateway.Auth.Token, &cfg.Gateway.Auth.Password} {
		if *s != "" {
			*s = redacted
		}
	}
}

// printValue writes scalars on one line and anything structured as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case string, bool, int, int64, float64:
		_, err := fmt.Fprintln(w, v)
		return err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// parseValue types a command-line value as bool, int or float when it reads
// as one, and leaves it a string otherwise.
func parseValue(s string) any {
	if lower := strings.ToLower(s); lower == "true" || lower == "false" {
		return lower == "true"
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
