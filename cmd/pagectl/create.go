package main

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/pagekit/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "create <store>",
		Short: "Create an empty store file",
		Long: `The create command initializes a new store file containing only the
header page. It fails when the file already exists.

Example:
  pagectl create data.pgst
  pagectl create data.pgst --page-size 8192`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0], pageSize)
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 4096, "Page size in bytes (power of two)")
	return cmd
}

func runCreate(path string, pageSize int) error {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", pageSize)
	}
	shift := uint(bits.TrailingZeros(uint(pageSize)))

	printVerbose("Creating store: %s (page size %d)\n", path, pageSize)
	s, err := store.Open(path, store.Options{
		CreateIfMissing: true,
		ErrorIfExists:   true,
		PageShift:       shift,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := s.Close(); err != nil {
		return err
	}

	printInfo("Created %s (page size %d)\n", path, pageSize)
	return nil
}
