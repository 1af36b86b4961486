package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/reposvc"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally cloned repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := openStorage()
		if err != nil {
			return err
		}
		mgr := reposvc.New(paths, nil)

		repos := mgr.ListRepositories()
		if len(repos) == 0 {
			fmt.Println("no repositories cloned yet — run `localci clone <url>`")
			return nil
		}
		for _, r := range repos {
			fmt.Println(r)
		}
		return nil
	},
}
