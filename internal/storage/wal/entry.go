// Package wal provides write-ahead logging for durability.
//
// Mutations are framed into append-only segment files. Each frame
// carries a crc32 over its type byte and payload; each finalized
// segment carries a sha256 trailer over its full content. Offsets are
// composite: the segment ID in the high 32 bits, the byte offset
// within the segment in the low 32.
package wal

import (
	"errors"
	"time"
)

// File format constants.
const (
	FilePrefix      = "wal-"
	FileExtension   = ".log"
	MagicBytes      = "SLKVWAL\x01"
	MagicBytesSize  = 8
	ChecksumSize    = 32
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

var (
	ErrCorruptedEntry   = errors.New("wal: corrupted entry")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidEntryType = errors.New("wal: invalid entry type")

	errInvalidMagic    = errors.New("wal: invalid magic bytes")
	errChecksumInvalid = errors.New("wal: checksum mismatch")
)

// OpType represents the type of operation in the WAL.
type OpType uint8

const (
	OpTypeUnspecified OpType = iota
	OpTypeSet
	OpTypeDelete
	OpTypeFlush
)

// Entry represents one durable operation written to the WAL.
//
// Timestamps and expirations use Unix milliseconds, matching the
// keyspace representation.
type Entry struct {
	Op        OpType
	Timestamp int64
	Key       string
	Value     []byte
	ExpiresAt int64
}

// NewSetEntry creates a SET WAL entry. expiresAt is the absolute
// expiration in Unix milliseconds, zero for none.
func NewSetEntry(key string, value []byte, expiresAt int64) *Entry {
	return &Entry{
		Op:        OpTypeSet,
		Timestamp: time.Now().UnixMilli(),
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
	}
}

// NewDeleteEntry creates a DELETE WAL entry.
func NewDeleteEntry(key string) *Entry {
	return &Entry{
		Op:        OpTypeDelete,
		Timestamp: time.Now().UnixMilli(),
		Key:       key,
	}
}

// NewFlushEntry creates a FLUSH WAL entry, recording removal of the
// entire keyspace.
func NewFlushEntry() *Entry {
	return &Entry{
		Op:        OpTypeFlush,
		Timestamp: time.Now().UnixMilli(),
	}
}
