package stage

import "errors"

// Sentinel errors recognized by Stage and StageManager.
var (
	// ErrChannelNotFound indicates a lookup for an unconfigured channel ID.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelExists indicates an attempt to register a duplicate channel ID.
	ErrChannelExists = errors.New("channel already exists")

	// ErrNoPendingProducer indicates Play was called with no prior Load.
	ErrNoPendingProducer = errors.New("no pending producer loaded")
)
