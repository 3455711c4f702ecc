// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
)

// OpenD frames every request and reply with a fixed 44-byte little-endian
// header followed by the serialized body:
//
//	[0:2]   flag "FT"
//	[2:6]   proto ID
//	[6]     body format (0 = protobuf, 1 = JSON)
//	[7]     proto version
//	[8:12]  serial number
//	[12:16] body length
//	[16:36] SHA-1 of the body
//	[36:44] reserved
//
// This server always requests the JSON body format, so no compiled protobuf
// descriptors are needed.
const (
	headerSize   = 44
	protoFmtJSON = 1
	protoVersion = 0

	// maxBodySize bounds a reply body so a corrupt length field cannot make
	// the reader allocate unbounded memory.
	maxBodySize = 16 << 20
)

type frameHeader struct {
	protoID  uint32
	format   uint8
	version  uint8
	serial   uint32
	bodyLen  uint32
	bodySHA1 [20]byte
}

// encodeFrame builds a complete outgoing frame for one request body.
func encodeFrame(protoID, serial uint32, body []byte) []byte {
	buf := make([]byte, headerSize+len(body))
	buf[0], buf[1] = 'F', 'T'
	binary.LittleEndian.PutUint32(buf[2:6], protoID)
	buf[6] = protoFmtJSON
	buf[7] = protoVersion
	binary.LittleEndian.PutUint32(buf[8:12], serial)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(body)))
	sum := sha1.Sum(body)
	copy(buf[16:36], sum[:])
	copy(buf[headerSize:], body)
	return buf
}

func decodeHeader(raw []byte) (frameHeader, error) {
	var h frameHeader
	if len(raw) != headerSize {
		return h, fmt.Errorf("opend: header is %d bytes, want %d", len(raw), headerSize)
	}
	if raw[0] != 'F' || raw[1] != 'T' {
		return h, fmt.Errorf("opend: bad header flag %q", raw[0:2])
	}
	h.protoID = binary.LittleEndian.Uint32(raw[2:6])
	h.format = raw[6]
	h.version = raw[7]
	h.serial = binary.LittleEndian.Uint32(raw[8:12])
	h.bodyLen = binary.LittleEndian.Uint32(raw[12:16])
	copy(h.bodySHA1[:], raw[16:36])
	if h.bodyLen > maxBodySize {
		return h, fmt.Errorf("opend: body length %d exceeds limit", h.bodyLen)
	}
	return h, nil
}

// readFrame reads one complete frame and verifies the body checksum.
func readFrame(r io.Reader) (frameHeader, []byte, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return frameHeader{}, nil, err
	}
	h, err := decodeHeader(raw[:])
	if err != nil {
		return frameHeader{}, nil, err
	}
	body := make([]byte, h.bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return frameHeader{}, nil, fmt.Errorf("opend: short body for proto %d: %w", h.protoID, err)
	}
	if sum := sha1.Sum(body); sum != h.bodySHA1 {
		return frameHeader{}, nil, fmt.Errorf("opend: body checksum mismatch for proto %d", h.protoID)
	}
	return h, body, nil
}
