package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slatekv/slatekv-go/pkg/sealbox"
)

// wirePayload is the msgpack body of one frame. When a sealer is
// configured the value travels in Sealed and Value stays empty.
type wirePayload struct {
	Timestamp int64  `msgpack:"ts"`
	Key       string `msgpack:"k,omitempty"`
	Value     []byte `msgpack:"v,omitempty"`
	ExpiresAt int64  `msgpack:"exp,omitempty"`
	Sealed    []byte `msgpack:"sealed,omitempty"`
}

func encodeEntryFrame(e *Entry, sealer sealbox.Sealer) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	switch e.Op {
	case OpTypeSet, OpTypeDelete, OpTypeFlush:
	default:
		return nil, ErrInvalidEntryType
	}
	if e.Op == OpTypeSet && e.Key == "" {
		return nil, fmt.Errorf("wal: missing key for set")
	}

	p := wirePayload{
		Timestamp: e.Timestamp,
		Key:       e.Key,
		ExpiresAt: e.ExpiresAt,
	}

	if e.Op == OpTypeSet {
		if sealer == nil {
			p.Value = e.Value
		} else {
			sealed, err := sealer.Seal(e.Value, []byte(e.Key))
			if err != nil {
				return nil, fmt.Errorf("wal: seal value: %w", err)
			}
			p.Sealed = sealed
		}
	}

	payload, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	typeByte := []byte{byte(e.Op)}
	crc := crc32.ChecksumIEEE(append(typeByte, payload...))

	// Length = CRC(4) + Type(1) + Payload.
	length := uint32(4 + 1 + len(payload))

	out := make([]byte, 0, 4+int(length))
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], length)
	out = append(out, header[:]...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, typeByte...)
	out = append(out, payload...)
	return out, nil
}

func decodeEntryFrame(frame []byte, sealer sealbox.Sealer) (*Entry, error) {
	// Frame layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	typeByte := frame[4]
	payload := frame[5:]

	gotCRC := crc32.ChecksumIEEE(append([]byte{typeByte}, payload...))
	if gotCRC != wantCRC {
		return nil, ErrChecksumMismatch
	}

	op := OpType(typeByte)
	switch op {
	case OpTypeSet, OpTypeDelete, OpTypeFlush:
	default:
		return nil, ErrInvalidEntryType
	}

	var p wirePayload
	if err := msgpack.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("wal: unmarshal payload: %w", err)
	}

	out := &Entry{
		Op:        op,
		Timestamp: p.Timestamp,
		Key:       p.Key,
		ExpiresAt: p.ExpiresAt,
	}

	if op != OpTypeSet {
		return out, nil
	}

	if p.Sealed == nil {
		out.Value = p.Value
		return out, nil
	}

	if sealer == nil {
		return nil, fmt.Errorf("wal: sealed entry requires a key")
	}
	value, err := sealer.Open(p.Sealed, []byte(p.Key))
	if err != nil {
		return nil, fmt.Errorf("wal: open sealed value: %w", err)
	}
	out.Value = value
	return out, nil
}
