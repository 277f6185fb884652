package storage

import (
	"time"

	"gorm.io/gorm"
)

// emaWeight is the share of the previous average kept on each update
const emaWeight = 0.9

type Database struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the connection with a trivial query
func (d *Database) Ping() error {
	var one int
	return d.db.Raw("SELECT 1").Scan(&one).Error
}

// CreateDecision stores a decision together with its trade executions
func (d *Database) CreateDecision(decision *TradingDecision) error {
	if decision.Timestamp.IsZero() {
		decision.Timestamp = d.now()
	}
	return d.db.Create(decision).Error
}

// GetDecision loads one decision with its trades. A missing row returns
// gorm.ErrRecordNotFound.
func (d *Database) GetDecision(decisionID string) (*TradingDecision, error) {
	var decision TradingDecision
	err := d.db.
		Preload("Trades", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		Where("decision_id = ?", decisionID).
		First(&decision).Error
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// LatestDecisions returns the newest decisions first
func (d *Database) LatestDecisions(limit int) ([]TradingDecision, error) {
	var decisions []TradingDecision
	err := d.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&decisions).Error
	return decisions, err
}

// DecisionsByModel returns the newest decisions of one model first
func (d *Database) DecisionsByModel(modelChoice string, limit int) ([]TradingDecision, error) {
	var decisions []TradingDecision
	err := d.db.Where("model_choice = ?", modelChoice).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&decisions).Error
	return decisions, err
}

// DecisionsInRange returns decisions between start and end inclusive, oldest
// first. An empty modelChoice matches every model.
func (d *Database) DecisionsInRange(start, end time.Time, modelChoice string, limit int) ([]TradingDecision, error) {
	// timestamps are stored in UTC and compared as text by SQLite
	query := d.db.Where("timestamp >= ? AND timestamp <= ?", start.UTC(), end.UTC())
	if modelChoice != "" {
		query = query.Where("model_choice = ?", modelChoice)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var decisions []TradingDecision
	err := query.Order("timestamp").Order("id").Find(&decisions).Error
	return decisions, err
}

// GetOrCreatePerformance returns the row for modelChoice, creating an empty one
func (d *Database) GetOrCreatePerformance(modelChoice string) (*ModelPerformance, error) {
	perf := ModelPerformance{ModelChoice: modelChoice}
	if err := d.db.Where("model_choice = ?", modelChoice).FirstOrCreate(&perf).Error; err != nil {
		return nil, err
	}
	return &perf, nil
}

// UpdatePerformance folds one decision into the model's aggregate. The
// average execution time is an exponential moving average.
func (d *Database) UpdatePerformance(modelChoice string, executionTimeMs *float64, success bool, profitLoss float64) (*ModelPerformance, error) {
	var perf *ModelPerformance

	err := d.db.Transaction(func(tx *gorm.DB) error {
		row := ModelPerformance{ModelChoice: modelChoice}
		if err := tx.Where("model_choice = ?", modelChoice).FirstOrCreate(&row).Error; err != nil {
			return err
		}

		row.TotalDecisions++
		if success {
			row.SuccessfulDecisions++
		} else {
			row.FailedDecisions++
		}

		if executionTimeMs != nil {
			avg := *executionTimeMs
			if row.AvgExecutionTimeMs != nil {
				avg = emaWeight*(*row.AvgExecutionTimeMs) + (1-emaWeight)*(*executionTimeMs)
			}
			row.AvgExecutionTimeMs = &avg
		}

		row.TotalProfitLoss += profitLoss

		now := d.now()
		if row.FirstDecisionAt == nil {
			row.FirstDecisionAt = &now
		}
		row.LastDecisionAt = &now

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		perf = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perf, nil
}

// AllPerformance lists every model's aggregate ordered by model
func (d *Database) AllPerformance() ([]ModelPerformance, error) {
	var rows []ModelPerformance
	err := d.db.Order("model_choice").Find(&rows).Error
	return rows, err
}

// CreateSnapshot stores a snapshot, deriving its total P&L
func (d *Database) CreateSnapshot(snapshot *PortfolioSnapshot) error {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = d.now()
	}
	snapshot.TotalPnL = snapshot.RealizedPnL + snapshot.UnrealizedPnL
	return d.db.Create(snapshot).Error
}

// EquityCurve returns up to limit snapshots of one model, oldest first
func (d *Database) EquityCurve(modelChoice string, limit int) ([]PortfolioSnapshot, error) {
	var snapshots []PortfolioSnapshot
	err := d.db.Where("model_choice = ?", modelChoice).
		Order("timestamp").Order("id").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}

// LatestSnapshot returns the newest snapshot, optionally for one model. A
// missing row returns gorm.ErrRecordNotFound.
func (d *Database) LatestSnapshot(modelChoice string) (*PortfolioSnapshot, error) {
	query := d.db.Model(&PortfolioSnapshot{})
	if modelChoice != "" {
		query = query.Where("model_choice = ?", modelChoice)
	}

	var snapshot PortfolioSnapshot
	if err := query.Order("timestamp DESC").Order("id DESC").First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}
