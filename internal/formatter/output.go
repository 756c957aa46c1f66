package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
)

// Formats accepted by Display
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Report is a single contract analysis as printed by the CLI
type Report struct {
	File      string `json:"file" yaml:"file"`
	Backend   string `json:"backend" yaml:"backend"`
	RiskScore int    `json:"riskScore" yaml:"riskScore"`
	Words     int    `json:"words" yaml:"words"`

	Analysis *analyzer.ContractAnalysis `json:"analysis" yaml:"analysis"`
}

// Display writes the report in the given format. An empty format means human.
func Display(w io.Writer, report *Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return displayJSON(w, report)
	case FormatYAML:
		return displayYAML(w, report)
	case FormatHuman, "":
		displayHuman(w, report)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (human, json, yaml)", format)
	}
}

func displayJSON(w io.Writer, report *Report) error {
	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func displayYAML(w io.Writer, report *Report) error {
	output, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(output))
	return err
}

func displayHuman(w io.Writer, report *Report) {
	a := report.Analysis

	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintf(w, "CONTRACT: %s\n", report.File)
	fmt.Fprintf(w, "   %d words, analyzed by the %s backend\n\n", report.Words, report.Backend)

	levelColor(a.RiskLevel).Fprintf(w, "RISK: %s (%d/100)\n", strings.ToUpper(string(a.RiskLevel)), report.RiskScore)
	fmt.Fprintf(w, "   Confidence: %.0f%%\n\n", a.Confidence*100)

	white.Fprintln(w, "SUMMARY:")
	fmt.Fprintln(w, wrapText(a.Summary, 80, "   "))
	fmt.Fprintln(w)

	printList(w, white, "KEY TERMS:", a.KeyTerms)
	printList(w, red, "RED FLAGS:", a.RedFlags)
	printList(w, green, "FAVORABLE TERMS:", a.FavorableTerms)

	if len(a.Recommendations) > 0 {
		cyan.Fprintln(w, "RECOMMENDATIONS:")
		for i, rec := range a.Recommendations {
			fmt.Fprintf(w, "   %d. %s\n", i+1, rec)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintln(w, color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func printList(w io.Writer, c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintln(w, title)
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
	fmt.Fprintln(w)
}

func levelColor(level analyzer.RiskLevel) *color.Color {
	switch level {
	case analyzer.RiskCritical:
		return color.New(color.FgRed, color.Bold)
	case analyzer.RiskHigh:
		return color.New(color.FgRed)
	case analyzer.RiskMedium:
		return color.New(color.FgYellow)
	case analyzer.RiskLow:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder

	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			switch {
			case currentLine == indent:
				currentLine += word
			case len(currentLine)+len(word)+1 > width:
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			default:
				currentLine += " " + word
			}
		}
		result.WriteString(currentLine + "\n")
	}

	return strings.TrimSuffix(result.String(), "\n")
}
