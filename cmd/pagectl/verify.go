package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/pagekit/store/verify"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <store>",
		Short: "Run offline structural validation of a store file",
		Long: `The verify command checks the store header (signature, checksum,
version, sizes, sequences) and walks the free page list validating every
node. The store file is never modified.

Example:
  pagectl verify data.pgst
  pagectl verify data.pgst --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0])
		},
	}
	return cmd
}

type verifyResult struct {
	Path    string         `json:"path"`
	Valid   bool           `json:"valid"`
	Check   string         `json:"check,omitempty"`
	Message string         `json:"message,omitempty"`
	Offset  int64          `json:"offset,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func runVerify(path string) error {
	printVerbose("Verifying store: %s\n", path)

	err := verify.Store(path)
	if err == nil {
		if jsonOut {
			return printJSON(verifyResult{Path: path, Valid: true})
		}
		printInfo("%s: OK\n", path)
		return nil
	}

	var ve *verify.Error
	if errors.As(err, &ve) {
		if jsonOut {
			if jerr := printJSON(verifyResult{
				Path:    path,
				Check:   ve.Type,
				Message: ve.Message,
				Offset:  ve.Offset,
				Details: ve.Details,
			}); jerr != nil {
				return jerr
			}
			os.Exit(1)
		}
		return fmt.Errorf("%s: %w", path, ve)
	}
	return err
}
