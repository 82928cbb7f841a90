package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tmachine/internal/toolchain"
)

func (c *cli) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the llc probe cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "clean",
			Short: "Remove every cached llc probe",
			Args:  cobra.NoArgs,
			RunE:  runCacheClean,
		},
		&cobra.Command{
			Use:   "dir",
			Short: "Print the cache directory",
			Args:  cobra.NoArgs,
			RunE:  runCacheDir,
		},
	)
	return cmd
}

func runCacheClean(cmd *cobra.Command, _ []string) error {
	cache, err := toolchain.OpenCache(cacheApp)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to clean %s: %w", cache.Dir(), err)
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", cache.Dir())
	}
	return nil
}

func runCacheDir(cmd *cobra.Command, _ []string) error {
	cache, err := toolchain.OpenCache(cacheApp)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
	return nil
}
