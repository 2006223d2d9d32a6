package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "evap-data",
		Short:         "Enrollment and roster ingestion tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newEnrollmentsCmd())
	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newCMSCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
