// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
)

// Value format: [4-byte big-endian CRC32][gob-encoded payload]. The
// checksum covers the gob bytes, so a torn or bit-rotted value is
// detected on read instead of decoding into garbage.

// encodeValue encodes a payload with a CRC32 checksum prefix.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())

	result := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(result[:4], crc)
	copy(result[4:], buf.Bytes())
	return result, nil
}

// decodeValue validates the checksum and decodes the payload into out,
// which must be a pointer.
func decodeValue(data []byte, out any) error {
	if len(data) < 5 { // 4-byte CRC + at least 1 byte of payload
		return fmt.Errorf("%w: value too short", ErrCorrupted)
	}

	storedCRC := binary.BigEndian.Uint32(data[:4])
	gobData := data[4:]
	computedCRC := crc32.ChecksumIEEE(gobData)
	if storedCRC != computedCRC {
		return fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorrupted, storedCRC, computedCRC)
	}

	dec := gob.NewDecoder(bytes.NewReader(gobData))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}
