package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/artifact"
	"github.com/localci/localci/pkg/storage"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Upload, download, and list per-run artifacts (spec.md §6)",
}

var artifactUploadCmd = &cobra.Command{
	Use:   "upload <workflow-id> <name> <file>",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openArtifacts()
		if err != nil {
			return err
		}
		return m.Upload(args[1], args[2], args[0])
	},
}

var artifactDownloadCmd = &cobra.Command{
	Use:   "download <workflow-id> <name> <destination>",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openArtifacts()
		if err != nil {
			return err
		}
		return m.Download(args[1], args[0], args[2])
	},
}

var artifactListCmd = &cobra.Command{
	Use:   "list <workflow-id>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openArtifacts()
		if err != nil {
			return err
		}
		names, err := m.List(args[0])
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no artifacts recorded")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

func openArtifacts() (*artifact.Manager, error) {
	paths, err := storage.Instance()
	if err != nil {
		return nil, err
	}
	return artifact.New(paths), nil
}

func init() {
	artifactCmd.AddCommand(artifactUploadCmd, artifactDownloadCmd, artifactListCmd)
	rootCmd.AddCommand(artifactCmd)
}
