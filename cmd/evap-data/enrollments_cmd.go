package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type enrollmentsOptions struct {
	input     string
	apply     bool
	semester  string
	voteStart time.Time
	voteEnd   time.Time
}

func newEnrollmentsCmd() *cobra.Command {
	var opts enrollmentsOptions

	cmd := &cobra.Command{
		Use:   "enrollments",
		Short: "Import an enrollment workbook (XLSX) into a semester",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInputFile(opts.input)
			if err != nil {
				return err
			}
			env, ctx, err := newCliEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			semesterID, err := env.resolveSemester(ctx, opts.semester)
			if err != nil {
				return err
			}
			rep, err := env.service.ImportEnrollments(ctx, semesterID, data, opts.voteStart, opts.voteEnd, !opts.apply)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			if err := writeReport(rep); err != nil {
				return err
			}
			return reportExitError(rep)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Enrollment workbook (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")

	var voteStart, voteEnd string
	cmd.Flags().StringVar(&opts.semester, "semester", "", "Semester UUID (default: the active semester)")
	cmd.Flags().StringVar(&voteStart, "vote-start", "", "Voting period start for new evaluations, e.g. 2026-04-06T08:00 (required)")
	cmd.Flags().StringVar(&voteEnd, "vote-end", "", "Voting period end date for new evaluations, e.g. 2026-04-19 (required)")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("vote-start")
	_ = cmd.MarkFlagRequired("vote-end")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if opts.voteStart, err = parseCliTime(voteStart); err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --vote-start: %w", err))
		}
		if opts.voteEnd, err = parseCliTime(voteEnd); err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --vote-end: %w", err))
		}
		if opts.voteEnd.Before(opts.voteStart) {
			return withCode(exitUsage, fmt.Errorf("--vote-end must not be before --vote-start"))
		}
		return nil
	}

	return cmd
}

func parseCliTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q (expected 2006-01-02T15:04 or 2006-01-02)", s)
}
