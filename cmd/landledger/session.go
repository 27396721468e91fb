package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/witnz/landledger/internal/certificate"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/registry"
	"gopkg.in/yaml.v3"
)

// batch is the YAML document read by the session command.
type batch struct {
	Certificates []certificate.Certificate `yaml:"certificates"`
}

func parseBatch(r io.Reader) ([]certificate.Certificate, error) {
	var b batch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse certificate batch: %w", err)
	}
	return b.Certificates, nil
}

var (
	sessionFile   string
	sessionLookup []string
	sessionExport string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Register a batch of certificates, verify lookups and print the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		var certs []certificate.Certificate
		if sessionFile != "" {
			f, err := os.Open(sessionFile)
			if err != nil {
				return fmt.Errorf("failed to open batch file: %w", err)
			}
			certs, err = parseBatch(f)
			f.Close()
			if err != nil {
				return err
			}
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		pterm.DefaultHeader.WithFullWidth().Println("Digital Land Certificate Registry")

		if len(certs) > 0 {
			pterm.DefaultSection.Println("Register Land")
		}
		for _, c := range certs {
			_, err := a.registry.Register(ctx, c)
			var ve *ledger.ValidationError
			switch {
			case err == nil:
				pterm.Success.Printfln("Certificate registered successfully for %s!", c.OwnerName)
			case errors.As(err, &ve):
				pterm.Warning.Printfln("Certificate %q rejected: %v", c.LandID, ve)
			case errors.Is(err, registry.ErrDuplicateLandID):
				pterm.Warning.Printfln("Land ID %q is already registered.", c.LandID)
			default:
				return err
			}
		}

		if len(sessionLookup) > 0 {
			pterm.DefaultSection.Println("Verify Certificate")
		}
		for _, id := range sessionLookup {
			reg, err := a.registry.Verify(ctx, id)
			if errors.Is(err, registry.ErrCertificateNotFound) {
				pterm.Error.Printfln("Certificate not found for %q. Please check the Land ID.", id)
				continue
			}
			if err != nil {
				return err
			}
			renderRecord("Certificate Found", reg.Record)
		}

		renderValidation(a.registry.Integrity(ctx))

		if err := renderLedger(a.registry.Ledger().Records()); err != nil {
			return err
		}

		if sessionExport != "" {
			meta, err := a.exportSnapshot(sessionExport)
			if err != nil {
				return err
			}
			pterm.Info.Printfln("Snapshot written to %s (merkle root %s)", sessionExport, shortHash(meta.MerkleRoot))
		}
		return nil
	},
}

func init() {
	sessionCmd.Flags().StringVarP(&sessionFile, "file", "f", "", "YAML file with certificates to register")
	sessionCmd.Flags().StringSliceVar(&sessionLookup, "lookup", nil, "Land IDs to verify after registering")
	sessionCmd.Flags().StringVar(&sessionExport, "export", "", "write a snapshot of the session ledger to this path")
}
