// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns the raw bytes of a server-sent-events chat response
// into an ordered sequence of assistant text deltas.
//
// The work is split into three stages:
//
//   - FrameDecoder: bytes to complete text lines, carrying partial UTF-8
//     sequences and unterminated lines across chunk boundaries
//   - ParseLine: classifies a line as comment, unrecognized field, data
//     frame or terminator
//   - ExtractDelta: pulls choices[0].delta.content out of a data payload
//
// Pipeline ties the stages together and owns the re-buffering rule: a data
// line whose JSON does not parse is pushed back and retried when more bytes
// arrive, while the final flush at end of stream discards such lines.
//
// # Usage
//
//	p := stream.NewPipeline()
//	err := p.Consume(ctx, resp.Body, func(delta string) {
//		fmt.Print(delta)
//	})
package stream
