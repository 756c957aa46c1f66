package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
)

func newSectionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sections FILE",
		Short: "List the clauses extracted from a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readContract(args[0])
			if err != nil {
				return err
			}

			sections := analyzer.ExtractSections(text)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sections)
			}

			bold := color.New(color.Bold)
			for i, sec := range sections {
				bold.Fprintf(out, "%3d. %-16s %.1f  ", i+1, sec.Type, sec.Importance)
				fmt.Fprintln(out, preview(sec.Text, 60))
			}
			fmt.Fprintf(out, "\n%d sections\n", len(sections))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sections as JSON")
	return cmd
}

// preview returns the first line of text cut to n runes
func preview(text string, n int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	r := []rune(line)
	if len(r) <= n {
		return line
	}
	return string(r[:n]) + "..."
}
