package main

import (
	"fmt"

	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/freelist"
	"github.com/joshuapare/pagekit/store/pool"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newFreelistCmd())
}

func newFreelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freelist <store>",
		Short: "Walk and print the free page list chain",
		Long: `The freelist command walks the store's free page list and prints one
line per list page. With --verbose it also lists the free page ids each
list page records.

Example:
  pagectl freelist data.pgst
  pagectl freelist data.pgst --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFreelist(args[0])
		},
	}
	return cmd
}

type freelistNode struct {
	Page    uint64   `json:"page"`
	Entries []uint64 `json:"entries"`
	Next    uint64   `json:"next"`
}

func runFreelist(path string) error {
	s, err := store.Open(path, store.Options{})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	po := pool.New(s, pool.Options{})

	var nodes []freelistNode
	err = freelist.Walk(po, s.FreeListHead(), func(n freelist.Node) error {
		node := freelistNode{
			Page:    uint64(n.ID),
			Entries: make([]uint64, 0, len(n.Entries)),
			Next:    uint64(n.Next),
		}
		for _, e := range n.Entries {
			node.Entries = append(node.Entries, uint64(e))
		}
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk free list: %w", err)
	}

	if jsonOut {
		return printJSON(nodes)
	}

	if len(nodes) == 0 {
		printInfo("Free list is empty\n")
		return nil
	}
	total := 0
	for _, n := range nodes {
		total += 1 + len(n.Entries)
		printInfo("page %d: %d entries, next %d\n", n.Page, len(n.Entries), n.Next)
		if verbose {
			for _, e := range n.Entries {
				printInfo("  %d\n", e)
			}
		}
	}
	printInfo("%d list page(s), %d free page(s) total\n", len(nodes), total)
	return nil
}
