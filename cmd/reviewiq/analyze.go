package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/api"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/app"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/config"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/formatter"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/logging"
)

const (
	backendAuto = "auto"
	backendRule = "rule"
)

type analyzeOptions struct {
	configFile   string
	outputFormat string
	backend      string
	timeout      time.Duration
	verbose      bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a plain-text contract",
		Long: `Analyze a .txt contract and print its risk level, red flags, favorable
terms and recommendations.

Examples:
  # Offline analysis with the rule backend
  reviewiq analyze msa.txt

  # Use the configured LLM or inference backend, falling back to rules
  reviewiq analyze msa.txt --backend auto

  # Machine-readable output
  reviewiq analyze msa.txt -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&opts.outputFormat, "output", "o", formatter.FormatHuman, "Output format (human, json, yaml)")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", backendRule, "Analysis backend (rule, auto)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Analysis timeout")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log backend selection and fallbacks")

	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, opts *analyzeOptions) error {
	switch strings.ToLower(opts.outputFormat) {
	case formatter.FormatHuman, formatter.FormatJSON, formatter.FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q (human, json, yaml)", opts.outputFormat)
	}

	text, err := readContract(path)
	if err != nil {
		return err
	}

	engine, err := buildEngine(cmd, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Analyzing contract..."
	if opts.outputFormat == formatter.FormatHuman {
		s.Start()
	}

	engine.Initialize(ctx)
	analysis, backend, err := engine.Analyze(ctx, text)
	s.Stop()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return formatter.Display(cmd.OutOrStdout(), &formatter.Report{
		File:      filepath.Base(path),
		Backend:   backend,
		RiskScore: api.RiskScore(analysis),
		Words:     len(strings.Fields(text)),
		Analysis:  analysis,
	}, opts.outputFormat)
}

func buildEngine(cmd *cobra.Command, opts *analyzeOptions) (*analyzer.Engine, error) {
	level := "error"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return nil, err
	}

	switch opts.backend {
	case backendRule:
		cfg := analyzer.DefaultConfig()
		if opts.configFile != "" {
			loaded, err := loadConfig(opts.configFile)
			if err != nil {
				return nil, err
			}
			cfg.RuleAggregation = analyzer.AggregationMode(loaded.Analyzer.RuleAggregation)
		}
		return analyzer.NewEngine(cfg, analyzer.WithLogger(logger)), nil
	case backendAuto:
		cfg, err := loadConfig(opts.configFile)
		if err != nil {
			return nil, err
		}
		return app.NewEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q (rule, auto)", opts.backend)
	}
}

func loadConfig(file string) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readContract loads a .txt contract. Other document formats must be converted first.
func readContract(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return "", fmt.Errorf("%s: only .txt files are supported; convert PDF or DOCX to text first", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read contract: %w", err)
	}
	return string(content), nil
}
