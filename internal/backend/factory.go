package backend

import (
	"context"
	"fmt"

	"expensa/internal/log"
	gsheet "expensa/internal/mirror/google"
	"expensa/internal/mirror/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new mirror factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentMirror),
	}
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MirrorNone:
		f.logger.InfoContext(ctx, "Spreadsheet mirror disabled")
		return &Result{}, nil
	case MirrorMemory:
		f.logger.InfoContext(ctx, "Initialized in-memory mirror")
		return &Result{Mirror: memory.New()}, nil
	case MirrorSheets:
		return f.createSheetsMirror(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsMirror(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsFile: config.GoogleServiceAccountFile,
		CredentialsJSON: config.GoogleServiceAccountJSON,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets mirror",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &Result{Mirror: cli}, nil
}
