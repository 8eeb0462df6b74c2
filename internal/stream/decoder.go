// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// scratchSize is the decode buffer used per Transform call.
const scratchSize = 4096

// FrameDecoder accumulates stream chunks and yields complete lines.
//
// UNICODE: bytes are decoded as UTF-8 with a carried state. A multi-byte
// sequence cut by a chunk boundary waits in pending until the rest of it
// arrives.
//
// A FrameDecoder belongs to exactly one response stream and is not safe for
// concurrent use.
type FrameDecoder struct {
	dec     transform.Transformer
	pending []byte
	buf     string
	closed  bool
	scratch [scratchSize]byte
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{dec: unicode.UTF8.NewDecoder()}
}

// Write appends a chunk in arrival order. Writes after Close are ignored.
func (d *FrameDecoder) Write(chunk []byte) {
	if d.closed || len(chunk) == 0 {
		return
	}
	d.pending = append(d.pending, chunk...)
	d.decode(false)
}

// Next pops the text up to the next line feed, dropping one trailing
// carriage return. ok is false when no complete line is buffered.
func (d *FrameDecoder) Next() (line string, ok bool) {
	idx := strings.IndexByte(d.buf, '\n')
	if idx < 0 {
		return "", false
	}
	line = d.buf[:idx]
	d.buf = d.buf[idx+1:]
	return strings.TrimSuffix(line, "\r"), true
}

// Unread pushes a line back to the front of the buffer so the next call to
// Next returns it again.
func (d *FrameDecoder) Unread(line string) {
	d.buf = line + "\n" + d.buf
}

// Close decodes whatever bytes are still pending. An incomplete trailing
// sequence becomes U+FFFD.
func (d *FrameDecoder) Close() {
	if d.closed {
		return
	}
	d.decode(true)
	d.pending = nil
	d.closed = true
}

// Remainder returns and clears the decoded text that has not been consumed.
func (d *FrameDecoder) Remainder() string {
	r := d.buf
	d.buf = ""
	return r
}

// Buffered returns the number of decoded bytes waiting in the buffer.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

func (d *FrameDecoder) decode(atEOF bool) {
	var sb strings.Builder
	sb.WriteString(d.buf)
	for len(d.pending) > 0 {
		nDst, nSrc, err := d.dec.Transform(d.scratch[:], d.pending, atEOF)
		sb.Write(d.scratch[:nDst])
		d.pending = d.pending[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		// nil, or ErrShortSrc with a partial rune left in pending.
		break
	}
	d.buf = sb.String()
	if len(d.pending) == 0 {
		d.pending = nil
	}
}
