// Package cmd wires the localci command surface: clone, list, workflows,
// run, doctor and serve. Grounded on the original's CommandHandler command
// table, translated from its Qt-console dispatch loop onto cobra the way
// the teacher repo wires its own command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/storage"
)

var (
	verbose bool
	logger  = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "localci",
	Short: "Run GitHub Actions-style workflows locally",
	Long: `localci clones a repository, discovers its .github/workflows files, and
schedules their jobs against a local container or VM backend — no hosted
runner required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		// Load a .env file for locally-scoped secrets (action-cache tokens,
		// DOCKER_HOST overrides) if one is present; absence is not an error.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logger.Debugf("loading .env: %v", err)
		}
	},
}

// Execute runs the root command and exits the process with status 1 on
// error, matching the original's non-zero exit on any command failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(serveCmd)
}

func openStorage() (*storage.Paths, error) {
	return storage.Instance()
}
