package types

import "time"

// PriceBar is a single closing-price observation for an asset.
// Bars are the raw input to indicator computation; they are produced
// upstream (exchange download, warehouse export) and never mutated here.
type PriceBar struct {
	// AssetID is the unique identifier of the asset or security.
	AssetID string
	// Time is the observation time of the bar.
	Time time.Time
	// Close is the closing price of the bar.
	Close float64
	// Volume is the traded volume for the bar period.
	Volume float64
}
