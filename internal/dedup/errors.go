package dedup

import (
	"errors"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

var (
	// ErrConfiguration is returned when grouping is attempted without a
	// computed similarity index.
	ErrConfiguration = errors.New("no similarity index computed for this dataset")
	// ErrNotComputed is returned by resolution policies when no duplicate
	// detection run has been materialized.
	ErrNotComputed = errors.New("approximate duplicates have not been computed yet")
	// ErrNotFound is returned when a saved view is missing.
	ErrNotFound = db.ErrNotFound
)
