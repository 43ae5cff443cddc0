package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/store"
)

func jobCommand() *cli.Command {
	return &cli.Command{
		Name:  "job",
		Usage: "Manage jobs",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a job",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Job title", Required: true},
					&cli.StringFlag{Name: "seniority", Usage: "Tier [junior, mid, senior, lead]", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Job description"},
					&cli.StringSliceFlag{Name: "required", Usage: "Required skill (repeatable)"},
					&cli.StringSliceFlag{Name: "preferred", Usage: "Preferred skill (repeatable)"},
					&cli.FloatFlag{Name: "min-years", Usage: "Years of experience required (default: tier default)"},
					&cli.StringFlag{Name: "education", Usage: "Required education [none, high_school, associate, bachelor, master, doctorate]"},
				},
				Action: withEnv(cmdAddJob),
			},
			{
				Name:   "list",
				Usage:  "List jobs",
				Flags:  pagingFlags(),
				Action: withEnv(cmdListJobs),
			},
			{
				Name:      "get",
				Usage:     "Show a job",
				ArgsUsage: "<job-id>",
				Action:    withEnv(cmdGetJob),
			},
			{
				Name:      "delete",
				Usage:     "Delete a job and its applications",
				ArgsUsage: "<job-id>",
				Action:    withEnv(cmdDeleteJob),
			},
			{
				Name:      "applications",
				Usage:     "List the applications of a job",
				ArgsUsage: "<job-id>",
				Action:    withEnv(cmdListApplications),
			},
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply a candidate to a job",
		Flags: []cli.Flag{
			jobFlag(),
			&cli.StringFlag{Name: "candidate", Usage: "Candidate ID", Required: true},
		},
		Action: withEnv(cmdApply),
	}
}

func qualifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "qualify",
		Usage:     "Record whether an applicant was actually qualified, used for equal opportunity",
		ArgsUsage: "<application-id> <yes|no|clear>",
		Action:    withEnv(cmdQualify),
	}
}

func cmdAddJob(ctx context.Context, cmd *cli.Command, e *env) error {
	j := &models.Job{
		Title:           cmd.String("title"),
		Seniority:       models.Seniority(cmd.String("seniority")),
		Description:     cmd.String("description"),
		RequiredSkills:  splitList(cmd.StringSlice("required")),
		PreferredSkills: splitList(cmd.StringSlice("preferred")),
		MinYears:        cmd.Float("min-years"),
	}
	if v := cmd.String("education"); v != "" {
		level, err := models.ParseEducationLevel(v)
		if err != nil {
			return err
		}
		j.RequiredEducation = level
	}
	if err := e.store.CreateJob(ctx, j); err != nil {
		return err
	}
	return encode(cmd, j)
}

func cmdListJobs(ctx context.Context, cmd *cli.Command, e *env) error {
	list, err := e.store.ListJobs(ctx, store.ListOptions{
		Limit:  int(cmd.Int(limitFlag)),
		Offset: int(cmd.Int(offsetFlag)),
	})
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdGetJob(ctx context.Context, cmd *cli.Command, e *env) error {
	id, err := requireArg(cmd, "job id")
	if err != nil {
		return err
	}
	j, err := e.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return encode(cmd, j)
}

func cmdDeleteJob(ctx context.Context, cmd *cli.Command, e *env) error {
	id, err := requireArg(cmd, "job id")
	if err != nil {
		return err
	}
	if err := e.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	return encode(cmd, map[string]string{"deleted": id})
}

func cmdListApplications(ctx context.Context, cmd *cli.Command, e *env) error {
	id, err := requireArg(cmd, "job id")
	if err != nil {
		return err
	}
	apps, err := e.store.ListApplications(ctx, id)
	if err != nil {
		return err
	}
	return encode(cmd, apps)
}

func cmdApply(ctx context.Context, cmd *cli.Command, e *env) error {
	app := &models.Application{JobID: cmd.String("job"), CandidateID: cmd.String("candidate")}
	if err := e.store.CreateApplication(ctx, app); err != nil {
		return err
	}
	return encode(cmd, app)
}

func cmdQualify(ctx context.Context, cmd *cli.Command, e *env) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: qualify <application-id> <yes|no|clear>")
	}
	id := cmd.Args().Get(0)

	var qualified *bool
	switch strings.ToLower(cmd.Args().Get(1)) {
	case "yes", "true", "y":
		v := true
		qualified = &v
	case "no", "false", "n":
		v := false
		qualified = &v
	case "clear", "unknown", "":
	default:
		return fmt.Errorf("invalid qualification %q, expected yes, no or clear", cmd.Args().Get(1))
	}

	if err := e.store.SetQualified(ctx, id, qualified); err != nil {
		return err
	}
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	return encode(cmd, app)
}
