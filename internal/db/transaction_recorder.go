// Package db persists Dispatcher outcomes for post-hoc scoring calibration
// and audit, grounded on the teacher's MySQLRecorder: the same GORM-over-
// MySQL shape (AutoMigrate on construction, one Record method, a handful of
// Get queries, Close), generalized from one strategy's asset-snapshot ledger
// to the dispatcher's per-opportunity outcome stream.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arbitrage-sub000/pkg/dispatcher"
)

// OutcomeRecord is the database model for one dispatcher.Outcome.
type OutcomeRecord struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement"`
	At                    time.Time `gorm:"index;not null"`
	OpportunityID         string    `gorm:"type:varchar(64);index;not null"`
	ChainID               uint64    `gorm:"index;not null"`
	OpportunityType       string    `gorm:"type:varchar(32);not null"`
	BlockNumber           uint64    `gorm:"not null"`
	Composite             float64   `gorm:"not null"`
	Tier                  string    `gorm:"type:varchar(16);not null"`
	Recommendation        string    `gorm:"type:varchar(32);not null"`
	EstimatedNetProfitUSD float64   `gorm:"not null"`
	Status                string    `gorm:"type:varchar(16);not null"`
	TxHash                string    `gorm:"type:varchar(80)"`
	ActualProfitUSD       *float64
	GasUsed               *uint64
	ExecErr               string    `gorm:"type:text"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (OutcomeRecord) TableName() string {
	return "dispatch_outcomes"
}

// MySQLRecorder persists dispatcher.Outcome records using GORM and MySQL. It
// is an optional sink the Dispatcher may fan outcomes into; nothing in the
// detection-and-dispatch pipeline depends on it being wired up.
type MySQLRecorder struct {
	db *gorm.DB
}

// NewMySQLRecorder creates a new MySQLRecorder instance.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLRecorder(dsn string) (*MySQLRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&OutcomeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &MySQLRecorder{db: db}, nil
}

// NewMySQLRecorderWithDB creates a new MySQLRecorder with an existing GORM DB instance.
func NewMySQLRecorderWithDB(db *gorm.DB) (*MySQLRecorder, error) {
	if err := db.AutoMigrate(&OutcomeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLRecorder{db: db}, nil
}

// RecordOutcome persists one dispatcher.Outcome for the given chain.
func (r *MySQLRecorder) RecordOutcome(chainID uint64, outcome dispatcher.Outcome) error {
	record := OutcomeRecord{
		At:                    outcome.At,
		OpportunityID:         outcome.Opportunity.ID,
		ChainID:               chainID,
		OpportunityType:       string(outcome.Opportunity.Type),
		BlockNumber:           outcome.Opportunity.BlockNumber,
		Composite:             outcome.Score.Composite,
		Tier:                  string(outcome.Score.Tier),
		Recommendation:        string(outcome.Score.Recommendation),
		EstimatedNetProfitUSD: outcome.Opportunity.EstimatedNetProfit,
		Status:                string(outcome.Result.Status),
		TxHash:                outcome.Result.TxHash,
		ActualProfitUSD:       outcome.Result.ActualProfitUSD,
		GasUsed:               outcome.Result.GasUsed,
	}
	if outcome.Err != nil {
		record.ExecErr = outcome.Err.Error()
	}

	result := r.db.Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to record outcome: %w", result.Error)
	}
	return nil
}

// GetDB returns the underlying GORM DB instance for advanced queries.
func (r *MySQLRecorder) GetDB() *gorm.DB {
	return r.db
}

// Close closes the database connection.
func (r *MySQLRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

// GetLatestOutcome retrieves the most recently recorded outcome.
func (r *MySQLRecorder) GetLatestOutcome() (*OutcomeRecord, error) {
	var record OutcomeRecord
	result := r.db.Order("at DESC").First(&record)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get latest outcome: %w", result.Error)
	}
	return &record, nil
}

// GetOutcomesByTimeRange retrieves outcomes recorded within [start, end].
func (r *MySQLRecorder) GetOutcomesByTimeRange(start, end time.Time) ([]OutcomeRecord, error) {
	var records []OutcomeRecord
	result := r.db.Where("at BETWEEN ? AND ?", start, end).
		Order("at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get outcomes by time range: %w", result.Error)
	}
	return records, nil
}

// GetOutcomesByChain retrieves every outcome recorded for one chain.
func (r *MySQLRecorder) GetOutcomesByChain(chainID uint64) ([]OutcomeRecord, error) {
	var records []OutcomeRecord
	result := r.db.Where("chain_id = ?", chainID).
		Order("at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get outcomes by chain: %w", result.Error)
	}
	return records, nil
}

// CountOutcomes returns the total number of recorded outcomes.
func (r *MySQLRecorder) CountOutcomes() (int64, error) {
	var count int64
	result := r.db.Model(&OutcomeRecord{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", result.Error)
	}
	return count, nil
}
