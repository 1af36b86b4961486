package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [workflow-file]",
	Short: "Check backend availability and, optionally, a workflow's compatibility",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report := doctor.CheckBackends(cmd.Context(), doctor.DefaultProbe)
		printReport(report)

		if len(args) == 1 {
			wfReport, err := doctor.CheckWorkflow(args[0])
			if err != nil {
				return err
			}
			printReport(wfReport)
			report.Checks = append(report.Checks, wfReport.Checks...)
		}

		if report.Errors() > 0 {
			return fmt.Errorf("%d error(s) found", report.Errors())
		}
		return nil
	},
}

func printReport(report *doctor.Report) {
	for _, c := range report.Checks {
		prefix := "OK  "
		switch c.Severity {
		case doctor.SeverityWarning:
			prefix = "WARN"
		case doctor.SeverityError:
			prefix = "FAIL"
		}
		fmt.Printf("[%s] %s\n", prefix, c.Message)
		if c.Workaround != "" {
			fmt.Printf("       workaround: %s\n", c.Workaround)
		}
	}
}
