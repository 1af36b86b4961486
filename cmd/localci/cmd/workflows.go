package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/discovery"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows <repository-path>",
	Short: "List the workflow files discovered in a cloned repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		found, err := discovery.Discover(args[0])
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("no workflows found under .github/workflows")
			return nil
		}
		for _, f := range found {
			fmt.Println(f)
		}
		return nil
	},
}

// pickWorkflow prompts the user to choose one of repoRoot's discovered
// workflows when run's workflow argument is omitted, enriching the
// original's single-workflow-at-a-time CLI with an interactive picker.
func pickWorkflow(repoRoot string) (string, error) {
	found, err := discovery.Discover(repoRoot)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no workflows found under %s/.github/workflows", repoRoot)
	}
	if len(found) == 1 {
		return found[0], nil
	}

	labels := make([]string, len(found))
	byLabel := make(map[string]string, len(found))
	for i, f := range found {
		rel, rerr := filepath.Rel(repoRoot, f)
		if rerr != nil {
			rel = f
		}
		labels[i] = rel
		byLabel[rel] = f
	}

	var chosen string
	prompt := &survey.Select{Message: "Choose a workflow to run:", Options: labels}
	if err := survey.AskOne(prompt, &chosen); err != nil {
		return "", err
	}
	return byLabel[chosen], nil
}
