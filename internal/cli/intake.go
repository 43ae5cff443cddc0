package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fmuoria/fair-hire/internal/ingestion"
)

func intakeCommand() *cli.Command {
	return &cli.Command{
		Name:  "intake",
		Usage: "Bulk import plain-text resumes as candidates applied to a job",
		Commands: []*cli.Command{
			{
				Name:   "uploads",
				Usage:  "Import every resume in the uploads directory (see --uploads)",
				Flags:  []cli.Flag{jobFlag()},
				Action: withEnv(cmdIntakeUploads),
			},
			{
				Name:  "gmail",
				Usage: "Download resume attachments from Gmail messages matching a subject, then import them",
				Flags: []cli.Flag{
					jobFlag(),
					&cli.StringFlag{Name: "subject", Usage: "Subject to search for", Required: true},
				},
				Action: withEnv(cmdIntakeGmail),
			},
		},
	}
}

func cmdIntakeUploads(ctx context.Context, cmd *cli.Command, e *env) error {
	result, err := e.agent.IntakeFromUploads(ctx, cmd.String("job"))
	if err != nil {
		return err
	}
	return encode(cmd, result)
}

func cmdIntakeGmail(ctx context.Context, cmd *cli.Command, e *env) error {
	gmail, err := ingestion.NewGmailHandler(ctx, ingestion.GmailOptions{
		CredentialsPath: e.cfg.Gmail.CredentialsPath,
		TokenDir:        e.cfg.Gmail.TokenDir,
		Prompt:          os.Stdin,
		Out:             errWriter(cmd),
	}, e.files, e.logger)
	if err != nil {
		return err
	}

	result, err := e.agent.IntakeFromGmail(ctx, gmail, cmd.String("subject"), cmd.String("job"))
	if err != nil {
		return err
	}
	return encode(cmd, result)
}
