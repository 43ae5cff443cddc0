package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/fmuoria/fair-hire/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: cmdConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration as YAML after environment and flag overrides",
				Action: cmdConfigShow,
			},
		},
	}
}

func configPath(cmd *cli.Command) (string, error) {
	if p := cmd.String(configFlag); p != "" {
		return p, nil
	}
	return config.GetConfigPath()
}

func cmdConfigInit(_ context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("config file %s already exists, use --force to overwrite", path)
	}

	if err := config.DefaultConfig().SaveTo(path); err != nil {
		return err
	}
	return encode(cmd, map[string]string{"path": path})
}

func cmdConfigShow(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(outWriter(cmd))
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
