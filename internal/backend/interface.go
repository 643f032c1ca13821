// Package backend builds the spreadsheet mirror selected by configuration.
package backend

import (
	"context"

	"expensa/internal/mirror"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the mirror instance and optional cleanup function.
// Mirror is nil for MirrorNone.
type Result struct {
	Mirror  mirror.Mirror
	Cleanup CleanupFunc
}

// Factory creates mirrors based on configuration
type Factory interface {
	CreateMirror(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for mirror creation
type Config struct {
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// MirrorType represents the type of mirror
type MirrorType string

const (
	MirrorNone   MirrorType = "none"
	MirrorMemory MirrorType = "memory"
	MirrorSheets MirrorType = "sheets"
)

// String implements fmt.Stringer
func (t MirrorType) String() string {
	return string(t)
}

// IsValid returns true if the mirror type is valid
func (t MirrorType) IsValid() bool {
	switch t {
	case MirrorNone, MirrorMemory, MirrorSheets:
		return true
	default:
		return false
	}
}
