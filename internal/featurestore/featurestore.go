// Package featurestore is a DuckDB-backed local feature store: entities,
// versioned feature views, and materialized indicator rows. It mirrors the
// register-then-materialize flow of warehouse feature stores so the rest of
// the pipeline can treat features as named, versioned tables.
package featurestore

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/openquant/momentum-pipeline/internal/types"
)

// Entity describes the join key of a feature view, typically the asset id.
type Entity struct {
	// Name is the unique entity name.
	Name string
	// JoinKeys are the columns that identify one entity instance.
	JoinKeys []string
	// Description is a human-readable description.
	Description string
}

// FeatureView groups a set of features over an entity. Registering a view
// stores its metadata; Materialize fills the versioned data table.
type FeatureView struct {
	// Name is the feature view name.
	Name string
	// Entity is the name of a registered entity.
	Entity string
	// Features are the feature column names exposed by the view.
	Features []string
	// RefreshFreq is the intended refresh cadence. The store records it;
	// scheduling is the pipeline's concern.
	RefreshFreq time.Duration
	// Description is a human-readable description.
	Description string
}

// AssetFeatures are the feature columns of the indicator feature view.
var AssetFeatures = []string{"rsi_14", "ma_20", "ma_50", "current_price", "volatility_20", "volume"}

// Store is the feature store interface.
type Store interface {
	// RegisterEntity registers or replaces an entity.
	RegisterEntity(entity Entity) error
	// GetEntity retrieves a registered entity by name.
	GetEntity(name string) (Entity, error)
	// RegisterFeatureView registers a feature view under a version.
	// An existing (name, version) pair is only replaced when overwrite is set.
	RegisterFeatureView(view FeatureView, version string, overwrite bool) error
	// GetFeatureView retrieves a registered feature view.
	GetFeatureView(name string, version string) (FeatureView, error)
	// Materialize writes indicator rows into the versioned data table of a
	// registered feature view, replacing previous contents.
	Materialize(name string, version string, rows []types.IndicatorRow) error
	// ReadRows reads back the materialized rows of a feature view, ordered
	// by asset id.
	ReadRows(name string, version string) ([]types.IndicatorRow, error)
	// LoadPriceBars points the raw price bar view at a parquet file.
	LoadPriceBars(parquetPath string) error
	// ReadPriceBars reads price bars, optionally bounded by time, ordered
	// by asset id then time.
	ReadPriceBars(start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error)
	// Close releases the underlying database resources.
	Close() error
}
