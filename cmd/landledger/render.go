package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/verify"
)

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

func renderPayload(p ledger.Payload) string {
	parts := make([]string, 0, p.Len())
	for _, f := range p.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Key, f.Value))
	}
	return strings.Join(parts, "\n")
}

func renderLedger(records []ledger.RecordView) error {
	pterm.DefaultSection.Println("Ledger")
	data := pterm.TableData{{"Index", "Created", "Payload", "Previous Hash", "Hash"}}
	for _, r := range records {
		data = append(data, []string{
			fmt.Sprint(r.Index),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			renderPayload(r.Payload),
			shortHash(r.PrevHash),
			shortHash(r.Hash),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithRowSeparator("-").WithData(data).Render()
}

func renderValidation(result ledger.ValidationResult) {
	pterm.DefaultSection.Println("Ledger Integrity Check")
	if result.Valid {
		pterm.Success.Printfln("The ledger is valid (%d records).", result.Length)
		return
	}
	c := result.Corruption
	pterm.Error.Println("The ledger has been compromised!")
	pterm.Error.Printfln("%s at record %d", c.Kind, c.Index)
	pterm.Error.Printfln("expected %s", c.Expected)
	pterm.Error.Printfln("actual   %s", c.Actual)
}

func renderRecord(title string, r ledger.RecordView) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		pterm.Error.Printfln("failed to render record %d: %v", r.Index, err)
		return
	}
	pterm.DefaultBox.WithTitle(title).Println(string(data))
}

func renderSnapshotReport(path string, report *verify.SnapshotReport) {
	pterm.DefaultSection.Printfln("Snapshot %s", path)
	pterm.Info.Printfln("exported %s, %d records, algorithm %s",
		report.Metadata.ExportedAt.Format("2006-01-02 15:04:05"), report.Metadata.Length, report.Metadata.Algorithm)

	renderValidation(report.Chain)

	if report.LengthMatch {
		pterm.Success.Println("Record count matches export metadata.")
	} else {
		pterm.Error.Printfln("Record count %d does not match export metadata %d.", report.Chain.Length, report.Metadata.Length)
	}
	if report.MerkleRootMatch {
		pterm.Success.Printfln("Merkle root matches export metadata (%s).", shortHash(report.MerkleRoot))
	} else {
		pterm.Error.Printfln("Merkle root %s does not match export metadata %s.",
			shortHash(report.MerkleRoot), shortHash(report.Metadata.MerkleRoot))
	}
}
