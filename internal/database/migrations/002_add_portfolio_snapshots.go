package migrations

import (
	"github.com/tradeking/tradeking-api/internal/storage"
	"gorm.io/gorm"
)

// AddPortfolioSnapshots creates the snapshot and model performance tables
func AddPortfolioSnapshots(db *gorm.DB) error {
	if err := db.AutoMigrate(&storage.PortfolioSnapshot{}, &storage.ModelPerformance{}); err != nil {
		return err
	}

	indexes := []string{
		// Equity curve and latest snapshot per model
		`CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_model_timestamp
		 ON portfolio_snapshots(model_choice, timestamp)`,

		`CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_timestamp
		 ON portfolio_snapshots(timestamp)`,
	}

	return createIndexes(db, indexes)
}
