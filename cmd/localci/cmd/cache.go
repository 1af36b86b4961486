package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/cache"
	"github.com/localci/localci/pkg/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Save, restore, and inspect the local workflow cache (spec.md §6)",
}

var cacheSaveCmd = &cobra.Command{
	Use:   "save <key> <file>...",
	Short: "Save files under a cache key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Save(args[0], args[1:])
	},
}

var cacheRestoreCmd = &cobra.Command{
	Use:   "restore <key> <destination>...",
	Short: "Restore a cache key's files to the given destinations",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Restore(args[0], args[1:])
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded cache key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache()
		if err != nil {
			return err
		}
		defer m.Close()
		keys, err := m.ListKeys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("no cache entries")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Clear one cache key, or every key if none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache()
		if err != nil {
			return err
		}
		defer m.Close()
		if len(args) == 1 {
			return m.ClearCache(args[0])
		}
		return m.ClearAll()
	},
}

func openCache() (*cache.Manager, error) {
	paths, err := storage.Instance()
	if err != nil {
		return nil, err
	}
	return cache.New(paths)
}

func init() {
	cacheCmd.AddCommand(cacheSaveCmd, cacheRestoreCmd, cacheListCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
