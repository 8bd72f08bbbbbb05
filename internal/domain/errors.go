package domain

import "errors"

// Forecasting and ingestion errors.
var (
	// ErrNoHistory is returned when a SKU has no daily facts at all.
	ErrNoHistory = errors.New("no sales history")

	// ErrInsufficientHistory is returned when there are too few days to train
	// or too few values to seed the recursive forecast.
	ErrInsufficientHistory = errors.New("insufficient sales history")

	// ErrInvalidHorizon is returned for a forecast horizon outside the allowed range.
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// ErrProductNotFound marks a line item whose product could not be resolved.
	ErrProductNotFound = errors.New("product not found")

	// ErrMalformedItem marks a line item with missing or invalid fields.
	ErrMalformedItem = errors.New("malformed line item")
)
