package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"arbitrage-sub000/pkg/dispatcher"
	"arbitrage-sub000/pkg/scorer"
	"arbitrage-sub000/pkg/types"
)

func TestMySQLRecorder_RecordOutcome(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm DB: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `dispatch_outcomes`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorder := &MySQLRecorder{db: gormDB}

	outcome := dispatcher.Outcome{
		Opportunity: types.Opportunity{ID: "opp-1", Type: types.Triangular, BlockNumber: 100, EstimatedNetProfit: 12.5},
		Score:       scorer.Score{Composite: 85, Tier: scorer.TierExcellent, Recommendation: scorer.RecommendExecuteImmediately},
		Result:      types.ExecutionResult{Status: types.ExecutionIncluded, TxHash: "0xabc"},
		At:          time.Now(),
	}

	if err := recorder.RecordOutcome(1, outcome); err != nil {
		t.Errorf("RecordOutcome failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMySQLRecorder_RecordOutcomeCapturesExecError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm DB: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `dispatch_outcomes`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	recorder := &MySQLRecorder{db: gormDB}
	outcome := dispatcher.Outcome{
		Opportunity: types.Opportunity{ID: "opp-2", Type: types.CrossVenue},
		Score:       scorer.Score{Composite: 50, Tier: scorer.TierMarginal},
		Result:      types.ExecutionResult{Status: types.ExecutionReverted},
		Err:         errExecTimeout,
		At:          time.Now(),
	}

	if err := recorder.RecordOutcome(7, outcome); err != nil {
		t.Errorf("RecordOutcome failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOutcomeRecord_TableName(t *testing.T) {
	record := OutcomeRecord{}
	if got := record.TableName(); got != "dispatch_outcomes" {
		t.Errorf("TableName() = %v, want dispatch_outcomes", got)
	}
}

var errExecTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "execution timed out" }
