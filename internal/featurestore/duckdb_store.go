package featurestore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// DuckDBStore implements Store on a DuckDB database.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBStore creates a feature store backed by the DuckDB database at
// path. Use ":memory:" for an ephemeral store.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB database: %w", err)
	}

	store := &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

// DB exposes the underlying database handle so the model registry and the
// signal writer can share one database file.
func (s *DuckDBStore) DB() *sql.DB {
	return s.db
}

// initialize creates the metadata tables.
func (s *DuckDBStore) initialize() error {
	// Raw SQL for DDL as Squirrel doesn't support CREATE statements.
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			name TEXT PRIMARY KEY,
			join_keys TEXT,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create entities table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feature_views (
			name TEXT,
			version TEXT,
			entity TEXT,
			features TEXT,
			refresh_freq_seconds BIGINT,
			description TEXT,
			created_at TIMESTAMP,
			PRIMARY KEY (name, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create feature_views table: %w", err)
	}

	return nil
}

// RegisterEntity implements Store. Registration is idempotent: an existing
// entity with the same name is replaced.
func (s *DuckDBStore) RegisterEntity(entity Entity) error {
	if entity.Name == "" || len(entity.JoinKeys) == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "entity requires a name and at least one join key")
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO entities (name, join_keys, description)
		VALUES (?, ?, ?)
	`, entity.Name, strings.Join(entity.JoinKeys, ","), entity.Description)
	if err != nil {
		return fmt.Errorf("failed to register entity %s: %w", entity.Name, err)
	}

	s.logger.Debug("Entity registered", zap.String("entity", entity.Name))

	return nil
}

// GetEntity implements Store.
func (s *DuckDBStore) GetEntity(name string) (Entity, error) {
	query, args, err := s.sq.
		Select("name", "join_keys", "description").
		From("entities").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return Entity{}, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		entityName  string
		joinKeys    string
		description string
	)

	err = s.db.QueryRow(query, args...).Scan(&entityName, &joinKeys, &description)
	if err != nil {
		if err == sql.ErrNoRows {
			return Entity{}, errors.Newf(errors.ErrCodeEntityNotFound, "entity %s not registered", name)
		}

		return Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}

	return Entity{
		Name:        entityName,
		JoinKeys:    strings.Split(joinKeys, ","),
		Description: description,
	}, nil
}

// RegisterFeatureView implements Store.
func (s *DuckDBStore) RegisterFeatureView(view FeatureView, version string, overwrite bool) error {
	if view.Name == "" || version == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "feature view requires a name and a version")
	}

	if _, err := s.GetEntity(view.Entity); err != nil {
		return err
	}

	if _, err := s.GetFeatureView(view.Name, version); err == nil {
		if !overwrite {
			return errors.Newf(errors.ErrCodeFeatureViewExists,
				"feature view %s version %s already registered", view.Name, version)
		}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO feature_views
			(name, version, entity, features, refresh_freq_seconds, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, view.Name, version, view.Entity, strings.Join(view.Features, ","),
		int64(view.RefreshFreq/time.Second), view.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to register feature view %s: %w", view.Name, err)
	}

	s.logger.Debug("Feature view registered",
		zap.String("feature_view", view.Name),
		zap.String("version", version),
	)

	return nil
}

// GetFeatureView implements Store.
func (s *DuckDBStore) GetFeatureView(name string, version string) (FeatureView, error) {
	query, args, err := s.sq.
		Select("name", "entity", "features", "refresh_freq_seconds", "description").
		From("feature_views").
		Where(squirrel.And{
			squirrel.Eq{"name": name},
			squirrel.Eq{"version": version},
		}).
		ToSql()
	if err != nil {
		return FeatureView{}, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		viewName           string
		entity             string
		features           string
		refreshFreqSeconds int64
		description        string
	)

	err = s.db.QueryRow(query, args...).Scan(&viewName, &entity, &features, &refreshFreqSeconds, &description)
	if err != nil {
		if err == sql.ErrNoRows {
			return FeatureView{}, errors.Newf(errors.ErrCodeFeatureViewNotFound,
				"feature view %s version %s not registered", name, version)
		}

		return FeatureView{}, fmt.Errorf("failed to get feature view: %w", err)
	}

	return FeatureView{
		Name:        viewName,
		Entity:      entity,
		Features:    strings.Split(features, ","),
		RefreshFreq: time.Duration(refreshFreqSeconds) * time.Second,
		Description: description,
	}, nil
}

// Materialize implements Store. The data table is rebuilt from scratch so a
// refresh never leaves stale rows behind.
func (s *DuckDBStore) Materialize(name string, version string, rows []types.IndicatorRow) error {
	if _, err := s.GetFeatureView(name, version); err != nil {
		return err
	}

	table := featureTableName(name, version)

	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return errors.Wrapf(errors.ErrCodeMaterializeFailed, err, "failed to drop data table %s", table)
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE %s (
			asset_id TEXT PRIMARY KEY,
			rsi_14 DOUBLE,
			ma_20 DOUBLE,
			ma_50 DOUBLE,
			current_price DOUBLE,
			volatility_20 DOUBLE,
			volume DOUBLE
		)
	`, table))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMaterializeFailed, err, "failed to create data table %s", table)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeMaterializeFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (asset_id, rsi_14, ma_20, ma_50, current_price, volatility_20, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeMaterializeFailed, "failed to prepare insert", err)
	}

	for _, row := range rows {
		_, err = stmt.Exec(row.AssetID, row.RSI14, row.MAShort, row.MALong, row.Price, row.Volatility20, row.Volume)
		if err != nil {
			stmt.Close()
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeMaterializeFailed, err, "failed to insert row for asset %s", row.AssetID)
		}
	}

	stmt.Close()

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeMaterializeFailed, "failed to commit materialization", err)
	}

	s.logger.Info("Feature view materialized",
		zap.String("feature_view", name),
		zap.String("version", version),
		zap.Int("rows", len(rows)),
	)

	return nil
}

// ReadRows implements Store.
func (s *DuckDBStore) ReadRows(name string, version string) ([]types.IndicatorRow, error) {
	if _, err := s.GetFeatureView(name, version); err != nil {
		return nil, err
	}

	query, args, err := s.sq.
		Select("asset_id", "rsi_14", "ma_20", "ma_50", "current_price", "volatility_20", "volume").
		From(featureTableName(name, version)).
		OrderBy("asset_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read feature view %s", name)
	}
	defer rows.Close()

	var result []types.IndicatorRow

	for rows.Next() {
		var row types.IndicatorRow

		err := rows.Scan(&row.AssetID, &row.RSI14, &row.MAShort, &row.MALong, &row.Price, &row.Volatility20, &row.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// LoadPriceBars creates a view over the given parquet file so price bars can
// be read without importing them. The file must carry asset_id, time, close
// and volume columns.
func (s *DuckDBStore) LoadPriceBars(parquetPath string) error {
	if _, err := s.db.Exec(`DROP VIEW IF EXISTS price_bars`); err != nil {
		return errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to drop existing price bar view", err)
	}

	// CREATE VIEW is not expressible with Squirrel. The path lands inside
	// a string literal, so embedded quotes must be doubled.
	query := fmt.Sprintf(`
		CREATE VIEW price_bars AS
		SELECT * FROM read_parquet('%s')
	`, strings.ReplaceAll(parquetPath, "'", "''"))

	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataLoadFailed, err, "failed to load price bars from %s", parquetPath)
	}

	s.logger.Debug("Price bars loaded", zap.String("path", parquetPath))

	return nil
}

// ReadPriceBars reads price bars ordered by asset then time, optionally
// bounded by an inclusive time range.
func (s *DuckDBStore) ReadPriceBars(start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error) {
	builder := s.sq.
		Select("asset_id", "time", "close", "volume").
		From("price_bars")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.OrderBy("asset_id ASC", "time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read price bars", err)
	}
	defer rows.Close()

	var result []types.PriceBar

	for rows.Next() {
		var bar types.PriceBar

		if err := rows.Scan(&bar.AssetID, &bar.Time, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}

		result = append(result, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	return result, nil
}

// Close implements Store.
func (s *DuckDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// featureTableName derives the versioned data table name for a feature view.
func featureTableName(name string, version string) string {
	sanitize := func(raw string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
				return r
			case r >= 'A' && r <= 'Z':
				return r + ('a' - 'A')
			default:
				return '_'
			}
		}, raw)
	}

	return fmt.Sprintf("fv_%s_%s", sanitize(name), sanitize(version))
}
