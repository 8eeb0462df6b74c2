// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
)

// ReadBufferSize is the size of each read from the response body.
const ReadBufferSize = 4096

// Pipeline converts one response stream into text deltas.
//
// Mid-stream, a data line whose JSON fails to parse is pushed back and the
// current pass stops; it is retried on the next Feed. The final Flush treats
// every remaining line once and discards the ones that still fail.
type Pipeline struct {
	dec        *FrameDecoder
	terminated bool
	discarded  int
}

// NewPipeline creates a pipeline for a single stream.
func NewPipeline() *Pipeline {
	return &Pipeline{dec: NewFrameDecoder()}
}

// Terminated reports whether the [DONE] frame has been seen.
func (p *Pipeline) Terminated() bool {
	return p.terminated
}

// Discarded returns how many malformed lines the final flush dropped.
func (p *Pipeline) Discarded() int {
	return p.discarded
}

// Feed processes one chunk and returns the deltas it completed, in order.
func (p *Pipeline) Feed(chunk []byte) []string {
	if p.terminated {
		return nil
	}
	p.dec.Write(chunk)

	var deltas []string
	for {
		line, ok := p.dec.Next()
		if !ok {
			return deltas
		}
		ev := ParseLine(line)
		switch ev.Kind {
		case EventDone:
			p.terminated = true
			return deltas
		case EventData:
			delta, ok, err := ExtractDelta(ev.Payload)
			if err != nil {
				// Probably incomplete; wait for more bytes.
				p.dec.Unread(line)
				return deltas
			}
			if ok {
				deltas = append(deltas, delta)
			}
		}
	}
}

// Flush runs the final pass over whatever is left once the stream has ended.
func (p *Pipeline) Flush() []string {
	if p.terminated {
		return nil
	}
	p.dec.Close()
	rest := p.dec.Remainder()
	if strings.TrimSpace(rest) == "" {
		return nil
	}

	var deltas []string
	for _, raw := range strings.Split(rest, "\n") {
		ev := ParseLine(strings.TrimSuffix(raw, "\r"))
		switch ev.Kind {
		case EventDone:
			p.terminated = true
			return deltas
		case EventData:
			delta, ok, err := ExtractDelta(ev.Payload)
			if err != nil {
				p.discarded++
				continue
			}
			if ok {
				deltas = append(deltas, delta)
			}
		}
	}
	if p.discarded > 0 {
		log.Printf("STREAM_FLUSH | discarded=%d", p.discarded)
	}
	return deltas
}

// Consume reads r until EOF, the terminator, or cancellation, calling
// onDelta for every delta in order. The context is checked before every
// chunk is processed; a canceled context is reported as ctx.Err().
func (p *Pipeline) Consume(ctx context.Context, r io.Reader, onDelta func(string)) error {
	buf := make([]byte, ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, d := range p.Feed(buf[:n]) {
				onDelta(d)
			}
			if p.terminated {
				return nil
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			for _, d := range p.Flush() {
				onDelta(d)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("read stream: %w", readErr)
	}
}
