package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/reposvc"
)

var cloneBranch string

var cloneCmd = &cobra.Command{
	Use:   "clone <repository-url>",
	Short: "Clone a repository into local storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := openStorage()
		if err != nil {
			return err
		}

		mgr := reposvc.New(paths, func(percent int, phase string) {
			logger.Debugf("clone: %d%% %s", percent, phase)
		})

		repoURL := args[0]
		if mgr.IsCloned(repoURL) {
			logger.Infof("updating existing clone of %s", repoURL)
			return mgr.UpdateRepository(context.Background(), repoURL)
		}

		logger.Infof("cloning %s", repoURL)
		if err := mgr.CloneRepository(context.Background(), repoURL, cloneBranch); err != nil {
			return err
		}
		logger.Infof("cloned into %s", mgr.GetLocalPath(repoURL))
		return nil
	},
}

func init() {
	cloneCmd.Flags().StringVar(&cloneBranch, "branch", "", "branch to clone (default: repository's default branch)")
}
