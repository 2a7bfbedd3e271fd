package scoring

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// SignalWriter persists scored signals.
type SignalWriter interface {
	// Append writes a batch of scored signals. Existing rows from earlier
	// runs are kept; the signals table is an append-only log.
	Append(signals []types.ScoredSignal) error
}

// DuckDBSignalWriter implements SignalWriter on a DuckDB table.
type DuckDBSignalWriter struct {
	db    *sql.DB
	table string
	sq    squirrel.StatementBuilderType
}

// NewDuckDBSignalWriter creates a signal writer on the given table,
// creating the table if needed.
func NewDuckDBSignalWriter(db *sql.DB, table string) (*DuckDBSignalWriter, error) {
	if table == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "signal table name is required")
	}

	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT,
			asset_id TEXT,
			signal TEXT,
			signal_strength DOUBLE,
			position_size DOUBLE,
			reasoning TEXT,
			signal_timestamp TIMESTAMP,
			strategy_version TEXT
		)
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create signals table %s: %w", table, err)
	}

	return &DuckDBSignalWriter{
		db:    db,
		table: table,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Append implements SignalWriter using a prepared statement within one
// transaction.
func (w *DuckDBSignalWriter) Append(signals []types.ScoredSignal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s
			(run_id, asset_id, signal, signal_strength, position_size, reasoning, signal_timestamp, strategy_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.table))
	if err != nil {
		tx.Rollback()

		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	for _, signal := range signals {
		_, err = stmt.Exec(
			signal.RunID,
			signal.AssetID,
			string(signal.Signal),
			signal.Strength,
			signal.PositionSize,
			signal.Reasoning,
			signal.Timestamp,
			signal.StrategyVersion,
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()

			return fmt.Errorf("failed to insert signal for asset %s: %w", signal.AssetID, err)
		}
	}

	stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signals: %w", err)
	}

	return nil
}

// ReadRun reads back the signals of one scoring run, ordered by asset id.
func (w *DuckDBSignalWriter) ReadRun(runID string) ([]types.ScoredSignal, error) {
	query, args, err := w.sq.
		Select("run_id", "asset_id", "signal", "signal_strength", "position_size",
			"reasoning", "signal_timestamp", "strategy_version").
		From(w.table).
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("asset_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := w.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read signals for run %s", runID)
	}
	defer rows.Close()

	var result []types.ScoredSignal

	for rows.Next() {
		var (
			signal     types.ScoredSignal
			signalType string
		)

		err := rows.Scan(&signal.RunID, &signal.AssetID, &signalType, &signal.Strength,
			&signal.PositionSize, &signal.Reasoning, &signal.Timestamp, &signal.StrategyVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		signal.Signal = types.SignalType(signalType)
		result = append(result, signal)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return result, nil
}
