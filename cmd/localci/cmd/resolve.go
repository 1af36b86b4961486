package cmd

import (
	"archive/tar"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/actioncache"
	"github.com/localci/localci/pkg/storage"
)

var (
	resolveToken string
	resolveList  bool
)

// resolveCmd pins a `uses: owner/repo@ref` action reference to the commit
// SHA it currently resolves to, without staging or running the action —
// the core backends still treat `uses` as a stub (spec.md §4.4); this
// surfaces the same reference-resolution machinery the doctor and a future
// action runner would rely on.
var resolveCmd = &cobra.Command{
	Use:   "resolve-action <owner/repo> <ref>",
	Short: "Resolve a `uses:` action reference to the commit SHA it currently points to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, ref := args[0], args[1]

		paths, err := storage.Instance()
		if err != nil {
			return err
		}

		cache := actioncache.New(paths.CacheRoot())
		url := "https://github.com/" + owner + ".git"

		sha, err := cache.Fetch(cmd.Context(), owner, url, ref, resolveToken)
		if err != nil {
			return err
		}

		fmt.Printf("%s@%s -> %s\n", owner, ref, sha)

		if resolveList {
			if err := listResolvedFiles(cmd.Context(), cache, owner, sha); err != nil {
				return err
			}
		}
		return nil
	},
}

// listResolvedFiles prints every file name in the resolved commit's tree,
// exercising Cache.GetTarArchive's tar stream rather than stopping at the
// resolved SHA.
func listResolvedFiles(ctx context.Context, cache *actioncache.Cache, owner, sha string) error {
	rc, err := cache.GetTarArchive(ctx, owner, sha, "")
	if err != nil {
		return err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(" ", hdr.Name)
	}
}

func init() {
	resolveCmd.Flags().StringVar(&resolveToken, "token", "", "access token for private repositories")
	resolveCmd.Flags().BoolVar(&resolveList, "list-files", false, "list every file in the resolved commit's tree")
	rootCmd.AddCommand(resolveCmd)
}
