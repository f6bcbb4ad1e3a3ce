package confloader

import "errors"

// ErrReadBytesNotSupported is returned when koanf asks a mapProvider
// for raw bytes; defaults live in memory, not on disk.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form, use Read")

// mapProvider adapts an in-memory map to koanf's Provider interface.
// It backs the defaults layer, which is loaded before the YAML file
// and environment layers so that either can override it.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
