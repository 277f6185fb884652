package migrations

import (
	"github.com/tradeking/tradeking-api/internal/storage"
	"gorm.io/gorm"
)

// AddDecisions creates the decision and trade execution tables with their
// query indexes
func AddDecisions(db *gorm.DB) error {
	if err := db.AutoMigrate(&storage.TradingDecision{}, &storage.TradeExecution{}); err != nil {
		return err
	}

	indexes := []string{
		// Latest-first listing
		`CREATE INDEX IF NOT EXISTS idx_trading_decisions_timestamp
		 ON trading_decisions(timestamp)`,

		// Per-model listing and date range filters
		`CREATE INDEX IF NOT EXISTS idx_trading_decisions_model_timestamp
		 ON trading_decisions(model_choice, timestamp)`,

		`CREATE INDEX IF NOT EXISTS idx_trade_executions_decision_sequence
		 ON trade_executions(decision_id, sequence)`,
	}

	return createIndexes(db, indexes)
}

func createIndexes(db *gorm.DB, indexes []string) error {
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}
	return nil
}
