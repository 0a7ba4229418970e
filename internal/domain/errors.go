package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUntrackedInstrument = errors.New("instrument not in registry")
	ErrUnknownVenue        = errors.New("unknown venue")
	ErrWSDisconnect        = errors.New("websocket disconnected")
)
