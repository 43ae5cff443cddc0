package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/store"
)

const (
	limitFlag  = "limit"
	offsetFlag = "offset"
)

func pagingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  limitFlag,
			Usage: "Limits number of results returned",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  offsetFlag,
			Usage: "Number of results to skip",
		},
	}
}

func candidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "candidate",
		Usage: "Manage candidates",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a candidate from a plain-text resume or from flags",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "resume", Usage: "Path to a plain-text resume (.txt, .md)"},
					&cli.StringFlag{Name: "name", Usage: "Candidate name (detected from the resume when omitted)"},
					&cli.StringFlag{Name: "email", Usage: "Email address"},
					&cli.StringFlag{Name: "phone", Usage: "Phone number"},
					&cli.StringSliceFlag{Name: "skill", Usage: "Skill (repeatable)"},
					&cli.FloatFlag{Name: "years", Usage: "Years of experience"},
					&cli.StringFlag{Name: "education", Usage: "Highest education [none, high_school, associate, bachelor, master, doctorate]"},
					&cli.StringSliceFlag{Name: "demographic", Usage: "Protected attribute as key=value, used only for audits (repeatable)"},
					&cli.StringFlag{Name: "job", Usage: "Apply the candidate to this job (optional)"},
				},
				Action: withEnv(cmdAddCandidate),
			},
			{
				Name:   "list",
				Usage:  "List candidates",
				Flags:  pagingFlags(),
				Action: withEnv(cmdListCandidates),
			},
			{
				Name:      "get",
				Usage:     "Show a candidate",
				ArgsUsage: "<candidate-id>",
				Action:    withEnv(cmdGetCandidate),
			},
			{
				Name:      "delete",
				Usage:     "Delete a candidate and their applications",
				ArgsUsage: "<candidate-id>",
				Action:    withEnv(cmdDeleteCandidate),
			},
		},
	}
}

func cmdAddCandidate(ctx context.Context, cmd *cli.Command, e *env) error {
	demographics, err := parseDemographics(cmd.StringSlice("demographic"))
	if err != nil {
		return err
	}
	jobID := cmd.String("job")

	if path := cmd.String("resume"); path != "" {
		text, err := ingestion.ReadResumeFile(path)
		if err != nil {
			return err
		}
		c, err := e.agent.AddResume(ctx, text, cmd.String("name"), jobID)
		if err != nil {
			return err
		}
		if len(demographics) > 0 {
			c.Demographics = demographics
			if err := e.store.UpdateCandidate(ctx, c); err != nil {
				return fmt.Errorf("failed to save demographics: %w", err)
			}
		}
		return encode(cmd, c)
	}

	c := &models.Candidate{
		Name:            cmd.String("name"),
		Email:           cmd.String("email"),
		Phone:           cmd.String("phone"),
		Skills:          splitList(cmd.StringSlice("skill")),
		YearsExperience: cmd.Float("years"),
		Demographics:    demographics,
	}
	if v := cmd.String("education"); v != "" {
		level, err := models.ParseEducationLevel(v)
		if err != nil {
			return err
		}
		c.Education = level
	}
	if err := e.store.CreateCandidate(ctx, c); err != nil {
		return err
	}
	if jobID != "" {
		app := &models.Application{JobID: jobID, CandidateID: c.ID}
		if err := e.store.CreateApplication(ctx, app); err != nil {
			return fmt.Errorf("failed to apply %s: %w", c.Name, err)
		}
	}
	return encode(cmd, c)
}

func cmdListCandidates(ctx context.Context, cmd *cli.Command, e *env) error {
	list, err := e.store.ListCandidates(ctx, store.ListOptions{
		Limit:  int(cmd.Int(limitFlag)),
		Offset: int(cmd.Int(offsetFlag)),
	})
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdGetCandidate(ctx context.Context, cmd *cli.Command, e *env) error {
	id, err := requireArg(cmd, "candidate id")
	if err != nil {
		return err
	}
	c, err := e.store.GetCandidate(ctx, id)
	if err != nil {
		return err
	}
	return encode(cmd, c)
}

func cmdDeleteCandidate(ctx context.Context, cmd *cli.Command, e *env) error {
	id, err := requireArg(cmd, "candidate id")
	if err != nil {
		return err
	}
	if err := e.store.DeleteCandidate(ctx, id); err != nil {
		return err
	}
	return encode(cmd, map[string]string{"deleted": id})
}

// splitList accepts repeated and comma separated values
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseDemographics(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid demographic %q, expected key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
