package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <description>",
		Short: "Ask Gemini for a name, description and system instruction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			if strings.TrimSpace(description) == "" {
				return errors.New("description is required")
			}

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			sug := a.suggest.SuggestAgentDetails(cmd.Context(), description)
			if sug.Empty() {
				return errors.New("Gemini returned no suggestion")
			}
			return printSuggestion(cmd.OutOrStdout(), sug)
		},
	}
}
