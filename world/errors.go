package world

import (
	"errors"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrCollectionExists  = errors.New("collection already exists")
	ErrMissingProperty   = errors.New("missing mandatory property")
	ErrTypeMismatch      = errors.New("feature type does not match collection schema")
	ErrInvalidFeature    = errors.New("invalid feature")
	ErrBadCatalog        = errors.New("invalid catalog record")
	ErrBadArchive        = errors.New("invalid world archive")
)
