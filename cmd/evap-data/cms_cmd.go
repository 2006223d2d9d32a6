package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evapdev/evap/modules/evaluation/services"
)

func newCMSCmd() *cobra.Command {
	var (
		input    string
		apply    bool
		semester string
	)

	cmd := &cobra.Command{
		Use:   "cms",
		Short: "Import the campus management JSON feed into a semester",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInputFile(input)
			if err != nil {
				return err
			}
			env, ctx, err := newCliEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			semesterID, err := env.resolveSemester(ctx, semester)
			if err != nil {
				return err
			}
			rep, stats, err := env.service.ImportCMS(ctx, semesterID, data, !apply)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			if err := writeReport(rep); err != nil {
				return err
			}
			if !rep.HasErrors() {
				fmt.Println(services.FormatCMSSummary(stats))
			}
			return reportExitError(rep)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "CMS feed file (JSON, required)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().StringVar(&semester, "semester", "", "Semester UUID (default: the active semester)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
