package main

import (
	"fmt"
	"os"

	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/freelist"
	"github.com/joshuapare/pagekit/store/pool"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <store>",
		Short: "Validate a store header and report basic metadata",
		Long: `The info command validates a store file and displays its metadata:
page size, page count, sequence state, and the number of free pages.

Example:
  pagectl info data.pgst
  pagectl info data.pgst --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	return cmd
}

type storeInfo struct {
	Path              string `json:"path"`
	FileSize          int64  `json:"file_size"`
	PageSize          int    `json:"page_size"`
	PageCount         uint64 `json:"page_count"`
	FreePages         int    `json:"free_pages"`
	FreeListHead      uint64 `json:"free_list_head"`
	Clean             bool   `json:"clean"`
	PrimarySequence   uint32 `json:"primary_sequence"`
	SecondarySequence uint32 `json:"secondary_sequence"`
}

func runInfo(path string) error {
	printVerbose("Opening store: %s\n", path)

	s, err := store.Open(path, store.Options{})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	po := pool.New(s, pool.Options{})
	freePages, err := freelist.Len(po, s.FreeListHead())
	if err != nil {
		return fmt.Errorf("failed to walk free list: %w", err)
	}

	hs := s.HeaderState()
	info := storeInfo{
		Path:              path,
		PageSize:          s.PageSize(),
		PageCount:         s.PageCount(),
		FreePages:         freePages,
		FreeListHead:      uint64(s.FreeListHead()),
		Clean:             s.Clean(),
		PrimarySequence:   hs.PrimarySequence,
		SecondarySequence: hs.SecondarySequence,
	}
	if stat, err := os.Stat(path); err == nil {
		info.FileSize = stat.Size()
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nStore Information:\n")
	printInfo("  File: %s\n", info.Path)
	printInfo("  Size: %s\n", formatSize(info.FileSize))
	printInfo("  Page size: %d bytes\n", info.PageSize)
	printInfo("  Pages: %d\n", info.PageCount)
	printInfo("  Free pages: %d\n", info.FreePages)
	printInfo("  Free list head: %d\n", info.FreeListHead)
	if info.Clean {
		printInfo("  State: clean (sequence %d)\n", info.PrimarySequence)
	} else {
		printInfo("  State: DIRTY (primary %d, secondary %d)\n",
			info.PrimarySequence, info.SecondarySequence)
	}
	return nil
}

func formatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
}
