// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/stream"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport issues the chat request. *cloud.GatewayClient implements it.
type Transport interface {
	Stream(ctx context.Context, req cloud.ChatRequest) (io.ReadCloser, error)
}

// Recorder persists the transcript after each finished turn.
type Recorder interface {
	Record(msgs []model.Message) error
}

// LocationFunc returns the location to attach to the next request, or nil.
type LocationFunc func() *model.LocationData

// =============================================================================
// STATE
// =============================================================================

// State is the controller's turn state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the controller state for presentation. It shares no
// memory with the controller.
type Snapshot struct {
	State    State
	Messages []model.Message
	Loading  bool
	// Err is the failure of the most recent turn; cleared by the next Submit.
	Err *TurnError
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller orchestrates chat turns over a Transport.
//
// Submit does not reject a submission while another turn is running;
// presentation is expected to disable input while Busy reports true.
type Controller struct {
	transport Transport
	location  LocationFunc
	observer  func(Snapshot)
	recorder  Recorder

	mu       sync.RWMutex
	messages []model.Message
	state    State
	active   int
	lastErr  *TurnError
	nextID   int
	cancels  map[int]context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLocation sets the source of the location attached to requests.
func WithLocation(fn LocationFunc) Option {
	return func(c *Controller) { c.location = fn }
}

// WithObserver registers fn to receive a snapshot after every change.
// fn is called without the controller lock held, from the turn goroutine.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithRecorder persists the transcript after each finished turn.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithHistory seeds the transcript, e.g. from a stored conversation.
func WithHistory(msgs []model.Message) Option {
	return func(c *Controller) { c.messages = model.CloneMessages(msgs) }
}

// NewController creates an idle controller.
func NewController(t Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		cancels:   make(map[int]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.CloneMessages(c.messages)
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active > 0
}

// Abort cancels every in-flight turn. Partial assistant content is kept.
func (c *Controller) Abort() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()

	// CANCELLATION: cancel outside the lock; a canceled turn takes it to
	// publish its final snapshot.
	for _, cancel := range cancels {
		cancel()
	}
}

// Reset clears the transcript and the last error. It aborts running turns.
func (c *Controller) Reset() {
	c.Abort()
	c.mu.Lock()
	c.messages = nil
	c.lastErr = nil
	if c.active == 0 {
		c.state = StateIdle
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Submit runs one turn for text and blocks until it ends.
//
// The user message is appended and published before the request is sent.
// Blank text returns ErrEmptyInput without touching state. Any other failure
// is returned as *TurnError; assistant text received before it is kept.
func (c *Controller) Submit(ctx context.Context, text string, src InputSource) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Location is read before taking the lock; the provider may block.
	var loc *model.LocationData
	if c.location != nil {
		loc = c.location().Clone()
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.cancels[id] = cancel
	c.active++
	c.messages = append(model.CloneMessages(c.messages), model.NewUserMessage(text))
	c.state = StateSending
	c.lastErr = nil
	outgoing := model.CloneMessages(c.messages)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	log.Printf("TURN_START | source=%s messages=%d location=%t", src, len(outgoing), loc != nil)
	start := time.Now()

	deltas, err := c.run(ctx, cloud.ChatRequest{Messages: outgoing, Location: loc})

	var turnErr *TurnError
	var snaps []Snapshot

	c.mu.Lock()
	delete(c.cancels, id)
	c.active--
	if err != nil {
		turnErr = classify(ctx, err)
		c.lastErr = turnErr
		c.state = StateError
		snaps = append(snaps, c.snapshotLocked())
	}
	if c.active == 0 {
		c.state = StateIdle
	}
	final := c.snapshotLocked()
	snaps = append(snaps, final)
	c.mu.Unlock()

	if turnErr != nil {
		log.Printf("TURN_FAILED | kind=%s deltas=%d error=%s", turnErr.Kind, deltas, turnErr.Detail())
	} else {
		log.Printf("TURN_DONE | deltas=%d duration=%v", deltas, time.Since(start))
	}
	for _, s := range snaps {
		c.publish(s)
	}
	c.record(final.Messages)

	if turnErr != nil {
		return turnErr
	}
	return nil
}

// run performs the request and streams the response into the transcript.
func (c *Controller) run(ctx context.Context, req cloud.ChatRequest) (int, error) {
	body, err := c.transport.Stream(ctx, req)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	c.mu.Lock()
	if c.state == StateSending {
		c.state = StateStreaming
	}
	turn := NewTurn(c.messages)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	count := 0
	err = stream.NewPipeline().Consume(ctx, body, func(delta string) {
		c.mu.Lock()
		// The accumulator is per turn; it folds into whatever transcript the
		// controller holds at the time of each delta.
		turn.Messages = c.messages
		turn = turn.Apply(delta)
		c.messages = turn.Messages
		count++
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
	})
	return count, err
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:    c.state,
		Messages: model.CloneMessages(c.messages),
		Loading:  c.active > 0,
		Err:      c.lastErr,
	}
}

func (c *Controller) publish(s Snapshot) {
	if c.observer != nil {
		c.observer(s)
	}
}

func (c *Controller) record(msgs []model.Message) {
	if c.recorder == nil || len(msgs) == 0 {
		return
	}
	if err := c.recorder.Record(msgs); err != nil {
		log.Printf("TURN_RECORD_FAILED | error=%v", err)
	}
}
