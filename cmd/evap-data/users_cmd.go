package main

import (
	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	var (
		input string
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Import a user workbook (XLSX)",
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

			rep, err := env.service.ImportUsers(ctx, data, !apply)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			if err := writeReport(rep); err != nil {
				return err
			}
			return reportExitError(rep)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "User workbook (required)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply changes to DB (default is dry-run)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
