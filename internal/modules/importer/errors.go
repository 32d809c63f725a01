package importer

import (
	"fmt"
	"strings"
)

// MissingColumnsError is returned when a required column is absent from the header
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// RowError describes a quarantined row. Row is 1-based and counts the header.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s (%q)", e.Row, e.Column, e.Reason, e.Value)
}
