package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentstudio/internal/studio"
	"github.com/soyeahso/agentstudio/internal/tester"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <agent-id>",
		Short: "Chat with an agent to try it out",
		Long: `Chat with an agent line by line. The transcript lives only for this run.

Commands:
  /reset   clear the conversation
  /back    leave the chat (also /quit or end of input)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.newStudio()
			defer st.Close(context.WithoutCancel(ctx))
			if err := st.Test(ctx, args[0]); err != nil {
				return err
			}
			return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), st, isTerminal(cmd.InOrStdin()))
		},
	}
}

// chatLoop feeds input lines to the open tester until /back or end of input.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, st *studio.Studio, interactive bool) error {
	agent := st.State().Tester.Agent
	fmt.Fprintf(out, "%s %s (%s)\n", agent.Icon, agent.Name, agent.Model)
	if interactive {
		fmt.Fprintln(out, "Type a message. /reset clears the chat, /back leaves.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/back", "/quit":
			return st.Back(ctx)
		case "/reset":
			if err := st.ResetChat(); err != nil {
				return err
			}
			fmt.Fprintln(out, "(chat cleared)")
			continue
		}

		reply, err := st.Send(ctx, line)
		switch {
		case errors.Is(err, tester.ErrReset):
			continue
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "%s %s\n", agent.Icon, reply.Content)
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return st.Back(context.WithoutCancel(ctx))
}
