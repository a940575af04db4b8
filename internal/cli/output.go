package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/llm"
)

// outputFormat resolves --format, falling back to a table on a terminal and
// JSON when piped.
func outputFormat(w io.Writer) (string, error) {
	f := strings.TrimSpace(strings.ToLower(format))
	switch f {
	case "":
		if isTerminal(w) {
			return "table", nil
		}
		return "json", nil
	case "table", "json", "plain":
		return f, nil
	default:
		return "", fmt.Errorf("invalid --format %q (want table, json or plain)", format)
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	return nil
}

func printAgents(w io.Writer, list []domain.Agent) error {
	f, err := outputFormat(w)
	if err != nil {
		return err
	}
	switch f {
	case "json":
		return printJSON(w, map[string]any{"agents": list})
	case "plain":
		for _, a := range list {
			fmt.Fprintf(w, "%s %s\n", a.ID, a.Name)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODEL\tCREATED")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", a.ID, a.Icon, a.Name, a.Model, a.Created().Format(time.DateOnly))
	}
	return tw.Flush()
}

func printAgent(w io.Writer, a domain.Agent) error {
	f, err := outputFormat(w)
	if err != nil {
		return err
	}
	switch f {
	case "json":
		return printJSON(w, a)
	case "plain":
		fmt.Fprintf(w, "%s %s\n", a.ID, a.Name)
		return nil
	}

	fmt.Fprintf(w, "%s %s\n", a.Icon, a.Name)
	fmt.Fprintf(w, "  ID:          %s\n", a.ID)
	fmt.Fprintf(w, "  Model:       %s\n", a.Model)
	fmt.Fprintf(w, "  Created:     %s\n", a.Created().Format(time.RFC1123))
	fmt.Fprintf(w, "  Description: %s\n", a.Description)
	fmt.Fprintln(w, "  System instruction:")
	for _, line := range strings.Split(a.SystemInstruction, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	return nil
}

func printSuggestion(w io.Writer, s llm.Suggestion) error {
	f, err := outputFormat(w)
	if err != nil {
		return err
	}
	if f == "json" {
		return printJSON(w, s)
	}

	field := func(label string, v *string) {
		if v == nil {
			fmt.Fprintf(w, "%s: (none)\n", label)
			return
		}
		fmt.Fprintf(w, "%s: %s\n", label, *v)
	}
	field("Name", s.Name)
	field("Description", s.Description)
	field("System instruction", s.SystemInstruction)
	return nil
}
