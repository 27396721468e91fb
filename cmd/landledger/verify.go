package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/witnz/landledger/internal/storage"
	"github.com/witnz/landledger/internal/verify"
)

var (
	verifySnapshot string
	verifyJSON     bool
)

var errSnapshotInvalid = errors.New("snapshot failed verification")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an exported ledger snapshot offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifySnapshot == "" {
			return fmt.Errorf("--snapshot is required")
		}
		if _, err := os.Stat(verifySnapshot); err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}

		store, err := storage.New(verifySnapshot)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := verify.AuditSnapshot(store)
		if err != nil {
			return fmt.Errorf("failed to audit snapshot: %w", err)
		}

		if verifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			renderSnapshotReport(verifySnapshot, report)
		}

		if !report.Valid() {
			return errSnapshotInvalid
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifySnapshot, "snapshot", "", "path to a snapshot written by --export or snapshot.export_path")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the report as JSON")
}
