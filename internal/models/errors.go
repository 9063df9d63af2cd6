package models

import "errors"

// Error taxonomy shared across the pipeline. Callers wrap these with
// fmt.Errorf("...: %w", err) and inspect them with errors.Is.
var (
	ErrFeedUnavailable  = errors.New("feed unavailable")
	ErrParseFailure     = errors.New("parse failure")
	ErrRenderFailure    = errors.New("render failure")
	ErrChannelPost      = errors.New("channel post failure")
	ErrStoreUnavailable = errors.New("store unavailable")
)
