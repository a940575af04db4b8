package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/editor"
	"github.com/soyeahso/agentstudio/internal/studio"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent personas",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentEditCmd())
	cmd.AddCommand(newAgentDeleteCmd())
	cmd.AddCommand(newAgentResetCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printAgents(cmd.OutOrStdout(), a.agents.List())
		},
	}
}

func newAgentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			agent, err := a.agents.Get(args[0])
			if err != nil {
				return err
			}
			return printAgent(cmd.OutOrStdout(), agent)
		},
	}
}

// draftFlags are the editable fields shared by create and edit.
type draftFlags struct {
	name        string
	description string
	instruction string
	model       string
	icon        string
	suggest     bool
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "agent name")
	cmd.Flags().StringVar(&f.description, "description", "", "short description")
	cmd.Flags().StringVar(&f.instruction, "instruction", "", "system instruction")
	cmd.Flags().StringVar(&f.model, "model", "", fmt.Sprintf("model (%s)", joinModels()))
	cmd.Flags().StringVar(&f.icon, "icon", "", "icon glyph, e.g. "+strings.Join(domain.IconPalette[:4], " "))
	cmd.Flags().BoolVar(&f.suggest, "suggest", false, "fill name, description and instruction from Gemini using the description")
}

// patch includes only the flags the user set.
func (f *draftFlags) patch(cmd *cobra.Command) editor.Patch {
	var p editor.Patch
	if cmd.Flags().Changed("name") {
		p.Name = &f.name
	}
	if cmd.Flags().Changed("description") {
		p.Description = &f.description
	}
	if cmd.Flags().Changed("instruction") {
		p.SystemInstruction = &f.instruction
	}
	if cmd.Flags().Changed("model") {
		m := domain.ModelType(f.model)
		p.Model = &m
	}
	if cmd.Flags().Changed("icon") {
		p.Icon = &f.icon
	}
	return p
}

func joinModels() string {
	names := make([]string, len(domain.Models))
	for i, m := range domain.Models {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// submitDraft applies the flags to the open editor, optionally asks Gemini
// for suggestions, and saves.
func submitDraft(ctx context.Context, cmd *cobra.Command, st *studio.Studio, f *draftFlags) (domain.Agent, error) {
	if _, err := st.UpdateDraft(f.patch(cmd)); err != nil {
		return domain.Agent{}, err
	}
	if f.suggest {
		sug, err := st.Suggest(ctx)
		if err != nil {
			return domain.Agent{}, err
		}
		if sug.Empty() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Gemini returned no suggestion; keeping the draft as entered")
		}
	}

	saved, agent, err := st.Submit(ctx)
	if err != nil {
		return domain.Agent{}, err
	}
	if !saved {
		return domain.Agent{}, errors.New("name and system instruction are required")
	}
	return agent, nil
}

func newAgentCreateCmd() *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), f.suggest)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.newStudio()
			defer st.Close(cmd.Context())
			st.CreateNew(cmd.Context())

			agent, err := submitDraft(cmd.Context(), cmd, st, &f)
			if err != nil {
				return err
			}
			return printAgent(cmd.OutOrStdout(), agent)
		},
	}

	f.register(cmd)
	return cmd
}

func newAgentEditCmd() *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "edit <agent-id>",
		Short: "Edit an agent; unset flags keep their current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), f.suggest)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.newStudio()
			defer st.Close(cmd.Context())
			if err := st.Edit(cmd.Context(), args[0]); err != nil {
				return err
			}

			agent, err := submitDraft(cmd.Context(), cmd, st, &f)
			if err != nil {
				return err
			}
			return printAgent(cmd.OutOrStdout(), agent)
		},
	}

	f.register(cmd)
	return cmd
}

func newAgentDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			confirm := func(agent domain.Agent) bool {
				return yes || ask(cmd, fmt.Sprintf("Delete agent %q?", agent.Name))
			}
			deleted, err := a.agents.Delete(cmd.Context(), args[0], confirm)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(cmd.ErrOrStderr(), "Not deleted.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newAgentResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the collection with the starter templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !ask(cmd, "Replace all agents with the starter templates?") {
				fmt.Fprintln(cmd.ErrOrStderr(), "Not reset.")
				return nil
			}

			// The collection is not loaded first so a corrupt blob can be replaced.
			a, err := openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.store.Reset()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d starter agents\n", len(list))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// ask prompts on an interactive stdin and reports whether the user said yes.
// Without a terminal it declines.
func ask(cmd *cobra.Command, question string) bool {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(cmd.ErrOrStderr(), "stdin is not a terminal; pass --yes to confirm")
		return false
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	return readYes(in)
}

func readYes(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
