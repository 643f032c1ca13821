package cli

import (
	"expensa/internal/config"
	"expensa/internal/log"
	"expensa/internal/receipt"
	"expensa/internal/services"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

// Services is the domain layer wired over one repository.
type Services struct {
	Categories *services.CategoryService
	Expenses   *services.ExpenseService
	Recurring  *services.RecurringService
	Budgets    *services.BudgetService
	Goals      *services.GoalService
	Settings   *services.SettingsService
	Stats      *services.StatsService
	Splitwise  *services.SplitwiseProxy
	Importer   *services.SplitwiseImporter
	Receipts   *receipt.Parser
}

// BuildServices wires every service. publisher may be nil, in which case
// expense events are not published.
func BuildServices(cfg *config.Config, repo *storage.SQLiteRepository, publisher services.Publisher, logger *log.Logger) *Services {
	stats := services.NewStatsService(repo, cfg.StatsCacheSize, cfg.StatsCacheTTL, logger)
	expenses := services.NewExpenseService(repo, publisher, stats, logger)
	settings := services.NewSettingsService(repo, logger)
	sw := splitwise.NewClient(cfg.SplitwiseBaseURL, cfg.SplitwiseTimeout, logger)

	return &Services{
		Categories: services.NewCategoryService(repo, expenses, stats, logger),
		Expenses:   expenses,
		Recurring:  services.NewRecurringService(repo, expenses, stats, logger),
		Budgets:    services.NewBudgetService(repo, stats, logger),
		Goals:      services.NewGoalService(repo, logger),
		Settings:   settings,
		Stats:      stats,
		Splitwise:  services.NewSplitwiseProxy(sw, settings, logger),
		Importer:   services.NewSplitwiseImporter(sw, repo, expenses, cfg.SplitwiseImportLookback, logger),
		Receipts: receipt.NewParser(receipt.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		}, logger),
	}
}
