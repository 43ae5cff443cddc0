// Package cli implements the fairhire command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fmuoria/fair-hire/internal/agent"
	"github.com/fmuoria/fair-hire/internal/config"
	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/llm"
	"github.com/fmuoria/fair-hire/internal/logging"
	"github.com/fmuoria/fair-hire/internal/scoring"
	"github.com/fmuoria/fair-hire/internal/skills"
	"github.com/fmuoria/fair-hire/internal/store"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
)

// global flag names
const (
	configFlag   = "config"
	dbFlag       = "db"
	driverFlag   = "driver"
	logLevelFlag = "log-level"
	debugFlag    = "debug"
	formatFlag   = "format"
	uploadsFlag  = "uploads"
)

// Execute creates and runs the CLI application.
func Execute() {
	if err := NewApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// NewApp builds the root command
func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  "fairhire",
		Version:               fmt.Sprintf("%s (%s)", version, commit),
		Usage:                 "Resume screening with explainable scores and fairness audits",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Usage:   "Path to the YAML config file (default: ~/.config/fairhire/config.yaml)",
				Sources: cli.EnvVars("FAIRHIRE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  dbFlag,
				Usage: "Database DSN, overrides the config file",
			},
			&cli.StringFlag{
				Name:  driverFlag,
				Usage: "Database driver [sqlite, postgres]",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "Log level [debug, info, warn, error]",
			},
			&cli.StringFlag{
				Name:  uploadsFlag,
				Usage: "Directory resumes are uploaded to and imported from, overrides the config file",
			},
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			configCommand(),
			candidateCommand(),
			jobCommand(),
			applyCommand(),
			qualifyCommand(),
			scoreCommand(),
			screenCommand(),
			reportCommand(),
			auditCommand(),
			exportCommand(),
			intakeCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}
}

// env is everything a command needs, built from config and global flags
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	agent   *agent.ScreeningAgent
	files   *ingestion.FileHandler
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Debug("error closing resource", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// loadConfig reads the config file and applies the global flags on top
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String(configFlag); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if v := cmd.String(dbFlag); v != "" {
		cfg.Database.DSN = v
	}
	if v := cmd.String(driverFlag); v != "" {
		cfg.Database.Driver = v
	}
	if v := cmd.String(uploadsFlag); v != "" {
		cfg.Gmail.UploadsDir = v
	}
	if v := cmd.String(logLevelFlag); v != "" {
		cfg.Logging.Level = v
	}
	if cmd.Bool(debugFlag) {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.NewWriterLogger(errWriter(cmd), cfg.Logging.Level, cfg.Logging.Format)
	e := &env{cfg: cfg, logger: logger}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	e.store = st
	e.closers = append(e.closers, st.Close)

	extractor := skills.NewExtractor(cfg.Skills.Extra)
	scorer, err := scoring.NewScorer(cfg.Scoring.Tiers, extractor)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}
	auditor, err := fairness.NewAuditor(cfg.Fairness)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("invalid fairness options: %w", err)
	}

	var reviewer *scoring.Reviewer
	if cfg.Vertex.Enabled {
		cfg.ApplyToEnv()
		client, err := llm.NewVertexAIClient(ctx, cfg.LLMOptions())
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		e.closers = append(e.closers, client.Close)
		reviewer = scoring.NewReviewer(client)
		logger.Debug("review notes enabled", zap.String("model", client.Model()))
	}

	e.files = ingestion.NewFileHandler(cfg.Gmail.UploadsDir)
	e.agent = agent.NewScreeningAgent(st, scorer, auditor, agent.Options{
		Workers:  cfg.Scoring.Workers,
		Reviewer: reviewer,
		Parser:   ingestion.NewParser(extractor),
		Files:    e.files,
		Logger:   logger,
	})
	return e, nil
}

// withEnv wraps an action with environment setup and teardown
func withEnv(fn func(ctx context.Context, cmd *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e, err := newEnv(ctx, cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, cmd, e)
	}
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

// encode prints v in the selected output format
func encode(cmd *cli.Command, v any) error {
	w := outWriter(cmd)
	switch f := cmd.String(formatFlag); f {
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}

func jobFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "job",
		Usage:    "Job ID",
		Required: true,
	}
}

func requireArg(cmd *cli.Command, what string) (string, error) {
	if cmd.Args().Len() < 1 || cmd.Args().First() == "" {
		return "", errors.New(what + " is required")
	}
	return cmd.Args().First(), nil
}
