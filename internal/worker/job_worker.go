package worker

import (
	"context"
	"errors"
	"fmt"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/mirror"
	"expensa/internal/services"
	"expensa/internal/storage"
)

// RowSource resolves an expense into a mirror row.
type RowSource interface {
	Row(ctx context.Context, userID, expenseID string) (mirror.Row, error)
}

// JobWorker handles messages from the jobs queue: expense events feed the
// spreadsheet mirror, and job messages run catch-up or Splitwise imports.
// mirror and importer may be nil.
type JobWorker struct {
	recurring *services.RecurringService
	importer  *services.SplitwiseImporter
	mirror    mirror.Mirror
	rows      RowSource
	logger    *log.Logger
}

func NewJobWorker(recurring *services.RecurringService, importer *services.SplitwiseImporter, m mirror.Mirror, rows RowSource, logger *log.Logger) *JobWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &JobWorker{
		recurring: recurring,
		importer:  importer,
		mirror:    m,
		rows:      rows,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Handle processes one message. Errors wrapping amqp.ErrPermanent should not
// be retried.
func (w *JobWorker) Handle(ctx context.Context, msg *amqp.Message) error {
	w.logger.InfoContext(ctx, "Processing message",
		log.FieldMessageType, msg.Type,
		log.FieldUserID, msg.UserID,
		log.FieldExpenseID, msg.ExpenseID)

	switch msg.Type {
	case amqp.TypeExpenseCreated, amqp.TypeExpenseUpdated:
		return w.HandleExpenseChanged(ctx, msg)
	case amqp.TypeExpenseDeleted:
		return w.HandleExpenseDeleted(ctx, msg)
	case amqp.TypeCatchUp:
		return w.HandleCatchUp(ctx, msg)
	case amqp.TypeImport:
		return w.HandleImport(ctx, msg)
	}
	return fmt.Errorf("%w: %s: %w", amqp.ErrPermanent, msg.Type, amqp.ErrUnknownMessageType)
}

// HandleExpenseChanged writes the current state of the expense to the mirror.
func (w *JobWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.Message) error {
	if w.mirror == nil {
		return nil
	}
	row, err := w.rows.Row(ctx, msg.UserID, msg.ExpenseID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the event was handled; the delete event follows.
		w.logger.DebugContext(ctx, "Expense gone before mirroring", log.FieldExpenseID, msg.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense for mirror: %w", err)
	}
	ref, err := w.mirror.Upsert(ctx, row)
	if err != nil {
		return fmt.Errorf("mirror expense: %w", err)
	}
	w.logger.InfoContext(ctx, "Successfully mirrored expense",
		log.FieldExpenseID, msg.ExpenseID,
		"row_ref", ref,
		log.FieldAmountCents, row.Amount.Cents)
	return nil
}

func (w *JobWorker) HandleExpenseDeleted(ctx context.Context, msg *amqp.Message) error {
	if w.mirror == nil {
		return nil
	}
	if err := w.mirror.Delete(ctx, msg.ExpenseID); err != nil {
		return fmt.Errorf("delete mirrored expense: %w", err)
	}
	w.logger.InfoContext(ctx, "Successfully removed mirrored expense", log.FieldExpenseID, msg.ExpenseID)
	return nil
}

// HandleCatchUp materializes due recurring occurrences for the user. An
// empty Through means the current month.
func (w *JobWorker) HandleCatchUp(ctx context.Context, msg *amqp.Message) error {
	var through core.Month
	if msg.Through != "" {
		m, err := core.ParseMonth(msg.Through)
		if err != nil {
			return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
		}
		through = m
	}
	n, err := w.recurring.CatchUp(ctx, msg.UserID, through)
	if err != nil {
		return fmt.Errorf("catch up: %w", err)
	}
	w.logger.InfoContext(ctx, "Catch-up job done", log.FieldUserID, msg.UserID, log.FieldCount, n)
	return nil
}

func (w *JobWorker) HandleImport(ctx context.Context, msg *amqp.Message) error {
	if w.importer == nil {
		return fmt.Errorf("%w: splitwise import not available", amqp.ErrPermanent)
	}
	n, err := w.importer.Import(ctx, msg.UserID)
	switch {
	case errors.Is(err, services.ErrSplitwiseNotReady):
		w.logger.WarnContext(ctx, "Skipping import for unconfigured user", log.FieldUserID, msg.UserID)
		return nil
	case err != nil:
		return fmt.Errorf("splitwise import: %w", err)
	}
	w.logger.InfoContext(ctx, "Import job done", log.FieldUserID, msg.UserID, log.FieldCount, n)
	return nil
}

// ResyncMirror re-mirrors every expense of the user. It backs up the event
// path when messages were lost or the mirror was replaced. When the mirror can
// list its rows, rows for expenses outside the given set are removed.
func (w *JobWorker) ResyncMirror(ctx context.Context, userID string, expenses []core.Expense) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}
	synced, failed := 0, 0
	live := make(map[string]bool, len(expenses))
	for _, e := range expenses {
		live[e.ID] = true
		if err := w.HandleExpenseChanged(ctx, &amqp.Message{Type: amqp.TypeExpenseUpdated, UserID: userID, ExpenseID: e.ID}); err != nil {
			w.logger.ErrorContext(ctx, "Failed to resync expense", log.FieldExpenseID, e.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	pruned := 0
	if lister, ok := w.mirror.(mirror.ExpenseLister); ok {
		mirrored, err := lister.ExpenseIDs(ctx, userID)
		if err != nil {
			return synced, fmt.Errorf("list mirrored expenses: %w", err)
		}
		for _, id := range mirrored {
			if live[id] {
				continue
			}
			if err := w.HandleExpenseDeleted(ctx, &amqp.Message{Type: amqp.TypeExpenseDeleted, UserID: userID, ExpenseID: id}); err != nil {
				w.logger.ErrorContext(ctx, "Failed to prune mirrored expense", log.FieldExpenseID, id, log.FieldError, err)
				failed++
				continue
			}
			pruned++
		}
	}

	w.logger.InfoContext(ctx, "Mirror resync completed",
		log.FieldUserID, userID,
		"total", len(expenses),
		"synced", synced,
		"pruned", pruned,
		"errors", failed)
	return synced, nil
}
