package main

import (
	"fmt"
	"os"

	"statsvault/internal/format"
	"statsvault/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{Indent: true}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeEntries(entries []models.Entry) error {
	if len(entries) == 0 {
		return writePlain("no entries\n")
	}
	return format.EntryTable(os.Stdout, entries)
}
