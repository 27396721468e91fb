package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/storage"
)

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <snapshot-path> <record-index> [field=value]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "This tool rewrites one payload field of a record without updating its hash\n")
		os.Exit(1)
	}

	path := os.Args[1]
	index, err := strconv.Atoi(os.Args[2])
	if err != nil || index < 0 {
		fmt.Fprintf(os.Stderr, "Invalid record index: %s\n", os.Args[2])
		os.Exit(1)
	}

	field, value := "Owner Name", "Mallory"
	if len(os.Args) == 4 {
		k, v, ok := strings.Cut(os.Args[3], "=")
		if !ok || k == "" {
			fmt.Fprintf(os.Stderr, "Expected field=value, got %q\n", os.Args[3])
			os.Exit(1)
		}
		field, value = k, v
	}

	fmt.Printf("Opening snapshot: %s\n", path)

	store, err := storage.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open snapshot: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	record, err := store.GetRecord(index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found record %d\n", record.Index)
	fmt.Printf("  Hash: %s\n", record.Hash)
	if old, ok := record.Payload.Get(field); ok {
		fmt.Printf("  Original %s: %s\n", field, old)
	}

	fields := record.Payload.Fields()
	replaced := false
	for i := range fields {
		if fields[i].Key == field {
			fields[i].Value = ledger.String(value)
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, ledger.Field{Key: field, Value: ledger.String(value)})
	}

	record.Payload, err = ledger.NewPayload(fields...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := store.PutRecord(record); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Set %s to %q on record %d, hash left unchanged\n", field, value, index)
	fmt.Println("Snapshot tampering completed; run `landledger verify --snapshot` to detect it")
}
