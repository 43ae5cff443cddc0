package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/export"
	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
)

const defaultAttribute = "gender"

func attributeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "attribute",
		Usage: "Protected attribute to audit",
		Value: defaultAttribute,
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score a plain-text resume against a job without storing anything",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "resume", Usage: "Path to a plain-text resume", Required: true},
			&cli.StringFlag{Name: "job", Usage: "Stored job ID (or describe the job inline)"},
			&cli.StringFlag{Name: "seniority", Usage: "Inline job tier [junior, mid, senior, lead]"},
			&cli.StringSliceFlag{Name: "required", Usage: "Inline required skill (repeatable)"},
			&cli.StringSliceFlag{Name: "preferred", Usage: "Inline preferred skill (repeatable)"},
			&cli.FloatFlag{Name: "min-years", Usage: "Inline years of experience required"},
		},
		Action: withEnv(cmdScore),
	}
}

func screenCommand() *cli.Command {
	return &cli.Command{
		Name:   "screen",
		Usage:  "Score, decide and rank every application of a job",
		Flags:  []cli.Flag{jobFlag()},
		Action: withEnv(cmdScreen),
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:   "report",
		Usage:  "Show the ranked results of the last screening",
		Flags:  []cli.Flag{jobFlag()},
		Action: withEnv(cmdReport),
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:   "audit",
		Usage:  "Fairness audit of a screened job: demographic parity, disparate impact and equal opportunity",
		Flags:  []cli.Flag{jobFlag(), attributeFlag()},
		Action: withEnv(cmdAudit),
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the screening report and fairness audit to an Excel workbook",
		Flags: []cli.Flag{
			jobFlag(),
			attributeFlag(),
			&cli.StringFlag{Name: "out", Usage: "Output path", Value: "screening_report.xlsx"},
		},
		Action: withEnv(cmdExport),
	}
}

type scoreResult struct {
	Candidate string                `json:"candidate" yaml:"candidate"`
	Skills    []string              `json:"skills" yaml:"skills"`
	Breakdown models.ScoreBreakdown `json:"breakdown" yaml:"breakdown"`
	Decision  models.Decision       `json:"decision" yaml:"decision"`
}

func cmdScore(ctx context.Context, cmd *cli.Command, e *env) error {
	text, err := ingestion.ReadResumeFile(cmd.String("resume"))
	if err != nil {
		return err
	}
	parsed, err := e.agent.ParseResume(text)
	if err != nil {
		return err
	}

	var job *models.Job
	if id := cmd.String("job"); id != "" {
		if job, err = e.agent.Job(ctx, id); err != nil {
			return err
		}
	} else {
		job = &models.Job{
			Title:           "Ad-hoc job",
			Seniority:       models.Seniority(cmd.String("seniority")),
			RequiredSkills:  splitList(cmd.StringSlice("required")),
			PreferredSkills: splitList(cmd.StringSlice("preferred")),
			MinYears:        cmd.Float("min-years"),
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("pass --job or a valid --seniority: %w", err)
		}
	}

	candidate := parsed.Candidate()
	breakdown, decision, err := e.agent.Evaluate(candidate, *job)
	if err != nil {
		return err
	}
	return encode(cmd, scoreResult{
		Candidate: candidate.Name,
		Skills:    candidate.Skills,
		Breakdown: breakdown,
		Decision:  decision,
	})
}

func cmdScreen(ctx context.Context, cmd *cli.Command, e *env) error {
	e.agent.SetProgressCallback(func(current, total int, message string) {
		e.logger.Info("screening progress",
			zap.Int("current", current),
			zap.Int("total", total),
			zap.String("message", message),
		)
	})

	report, err := e.agent.ScreenJob(ctx, cmd.String("job"))
	if err != nil {
		return err
	}
	return encode(cmd, report)
}

func cmdReport(ctx context.Context, cmd *cli.Command, e *env) error {
	report, err := e.agent.Report(ctx, cmd.String("job"))
	if err != nil {
		return err
	}
	return encode(cmd, report)
}

func cmdAudit(ctx context.Context, cmd *cli.Command, e *env) error {
	audit, err := e.agent.Audit(ctx, cmd.String("job"), cmd.String("attribute"))
	if err != nil {
		return err
	}
	return encode(cmd, audit)
}

func cmdExport(ctx context.Context, cmd *cli.Command, e *env) error {
	jobID := cmd.String("job")
	report, err := e.agent.Report(ctx, jobID)
	if err != nil {
		return err
	}
	audit, err := e.agent.Audit(ctx, jobID, cmd.String("attribute"))
	if err != nil {
		return err
	}

	path, err := export.ExportToExcel(report, audit, cmd.String("out"))
	if err != nil {
		return err
	}
	e.logger.Info("report exported", zap.String("path", path))
	return encode(cmd, map[string]string{"path": path})
}
