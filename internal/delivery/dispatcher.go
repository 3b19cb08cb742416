// order-notify - Order confirmation notifications over WhatsApp
// Copyright (C) 2026  nexus contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Package delivery holds order confirmations until the WhatsApp session can
// take them and delivers them in arrival order.
//
// The Dispatcher owns an in-memory FIFO queue and a single drain loop. The
// loop only pops the head after the bridge confirms the send; a failed head
// is retried after a fixed backoff, forever. Nothing is skipped or
// reordered, which gives at-least-once, in-order delivery with one known
// availability risk: a recipient that can never be reached blocks every
// item behind it until an operator removes it (see Remove).
//
// The queue is not persisted. Items still pending at shutdown are lost.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultBackoff is the wait between retries of a failed head item.
const DefaultBackoff = 5 * time.Second

// observeTimeout bounds how long a single observer may hold up the caller.
const observeTimeout = 5 * time.Second

// Messenger is the send capability of the messaging session.
type Messenger interface {
	Send(ctx context.Context, recipient, text string) error
	IsRegistered(ctx context.Context, recipient string) (bool, error)
}

// Readiness reports whether the messaging session can accept sends.
type Readiness interface {
	IsReady() bool
}

// Observer is told about every delivery attempt. It must not call back
// into the Dispatcher.
type Observer interface {
	Observe(ctx context.Context, o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome)

func (f ObserverFunc) Observe(ctx context.Context, o Outcome) { f(ctx, o) }

// Options configures a Dispatcher.
type Options struct {
	// Backoff between retries of the head item. Defaults to DefaultBackoff.
	Backoff   time.Duration
	Logger    *slog.Logger
	Observers []Observer
}

// Dispatcher serializes every send to the messaging session and owns the
// delivery queue.
type Dispatcher struct {
	messenger Messenger
	ready     Readiness
	backoff   time.Duration
	observers []Observer
	logger    *slog.Logger

	// sendMu serializes all calls into the messenger; the session does
	// not tolerate interleaved operations.
	sendMu sync.Mutex

	mu       sync.Mutex
	items    []PendingNotification
	draining bool
	inflight string
	closed   bool

	// Attempt count for the current head. Only the running drain touches
	// these; the draining flag hands them from one drain to the next.
	headID       string
	headAttempts int

	// wake cuts a running drain's backoff short.
	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Dispatcher. Call Close at shutdown to stop a running drain.
func New(m Messenger, r Readiness, opts Options) *Dispatcher {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		messenger: m,
		ready:     r,
		backoff:   opts.Backoff,
		observers: opts.Observers,
		logger:    opts.Logger.With("component", "delivery"),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue appends a notification to the tail of the queue and returns it.
// It never fails and never waits on the messaging session.
//
// If the gate is already open, a drain is started in the background so an
// item that lost the race against the gate opening is not stranded.
func (d *Dispatcher) Enqueue(recipient, body string) PendingNotification {
	n := NewNotification(recipient, body)

	d.mu.Lock()
	d.items = append(d.items, n)
	depth := len(d.items)
	start := !d.draining && !d.closed && d.ready.IsReady()
	if start {
		d.draining = true
		d.wg.Add(1)
	}
	d.mu.Unlock()

	d.logger.Info("notification queued", "id", n.ID, "recipient", n.Recipient, "depth", depth)

	if start {
		go func() {
			defer d.wg.Done()
			d.drainLoop(d.ctx)
		}()
	}
	return n
}

// Dispatch sends a notification right away, bypassing the queue. It fails
// with ErrNotReady when the gate is closed, ErrUnregisteredRecipient when
// the number has no WhatsApp account and ErrTransport for anything the
// bridge reports.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient, body string) (PendingNotification, error) {
	n := NewNotification(recipient, body)
	start := time.Now()
	err := d.send(ctx, n)
	if errors.Is(err, ErrNotReady) {
		return n, err
	}

	d.observe(Outcome{
		NotificationID: n.ID,
		Recipient:      n.Recipient,
		Mode:           ModeImmediate,
		Attempt:        1,
		Err:            err,
		At:             time.Now().UTC(),
		Duration:       time.Since(start),
	})
	if err != nil {
		d.logger.Error("immediate send failed", "id", n.ID, "recipient", n.Recipient, "error", err)
		return n, err
	}
	d.logger.Info("notification sent", "id", n.ID, "recipient", n.Recipient, "mode", ModeImmediate)
	return n, nil
}

// Trigger starts a drain in the background. It is the hook the gate runs
// when the session becomes ready.
func (d *Dispatcher) Trigger() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.Drain(d.ctx)
	}()
}

// Drain delivers queued notifications in order until the queue is empty or
// ctx is cancelled. If a drain is already running, Drain does not start a
// second loop; it wakes the running one from its backoff and returns.
func (d *Dispatcher) Drain(ctx context.Context) {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		d.wakeUp()
		return
	}
	d.draining = true
	d.mu.Unlock()

	d.drainLoop(ctx)
}

// drainLoop must only run with d.draining set by the caller.
func (d *Dispatcher) drainLoop(ctx context.Context) {
	// Drop a wake token left over from an earlier drain.
	select {
	case <-d.wake:
	default:
	}

	for {
		d.mu.Lock()
		if len(d.items) == 0 || ctx.Err() != nil {
			remaining := len(d.items)
			d.draining = false
			d.inflight = ""
			d.mu.Unlock()
			if remaining == 0 {
				d.logger.Info("queue drained")
			} else {
				d.logger.Warn("drain stopped", "remaining", remaining, "error", ctx.Err())
			}
			return
		}
		head := d.items[0]
		d.inflight = head.ID
		d.mu.Unlock()

		if head.ID != d.headID {
			d.headID = head.ID
			d.headAttempts = 0
		}

		start := time.Now()
		err := d.send(ctx, head)
		if errors.Is(err, ErrNotReady) {
			// Nothing reached the bridge, so this is not an attempt.
			if d.pause() {
				return
			}
			continue
		}
		d.headAttempts++
		attempt := d.headAttempts

		d.mu.Lock()
		d.inflight = ""
		depth := len(d.items)
		if err == nil && depth > 0 && d.items[0].ID == head.ID {
			d.items[0] = PendingNotification{}
			d.items = d.items[1:]
			depth--
		}
		d.mu.Unlock()

		d.observe(Outcome{
			NotificationID: head.ID,
			Recipient:      head.Recipient,
			Mode:           ModeQueued,
			Attempt:        attempt,
			Err:            err,
			At:             time.Now().UTC(),
			Duration:       time.Since(start),
		})

		if err == nil {
			d.logger.Info("notification sent", "id", head.ID, "recipient", head.Recipient,
				"mode", ModeQueued, "attempt", attempt, "depth", depth)
			continue
		}

		d.logger.Warn("queued send failed, will retry", "id", head.ID, "recipient", head.Recipient,
			"attempt", attempt, "backoff", d.backoff, "error", err)

		if !d.wait(ctx) {
			// Loop top observes the cancelled context and clears draining.
			continue
		}
	}
}

// pause ends the drain while the gate is closed; the gate's open hook starts
// the next one. It returns false if the gate reopened in the meantime, in
// which case the caller keeps draining.
func (d *Dispatcher) pause() bool {
	d.mu.Lock()
	d.inflight = ""
	if d.ready.IsReady() {
		d.mu.Unlock()
		return false
	}
	d.draining = false
	remaining := len(d.items)
	d.mu.Unlock()

	d.logger.Info("session not ready, drain paused", "remaining", remaining)
	return true
}

// wait sleeps for the backoff. It returns false if ctx was cancelled.
func (d *Dispatcher) wait(ctx context.Context) bool {
	t := time.NewTimer(d.backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.wake:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) wakeUp() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// send performs one attempt under sendMu.
func (d *Dispatcher) send(ctx context.Context, n PendingNotification) error {
	if !d.ready.IsReady() {
		return &SendError{Kind: ErrNotReady, Recipient: n.Recipient}
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	ok, err := d.messenger.IsRegistered(ctx, n.Recipient)
	if err != nil {
		return &SendError{Kind: ErrTransport, Recipient: n.Recipient, Err: err}
	}
	if !ok {
		return &SendError{Kind: ErrUnregisteredRecipient, Recipient: n.Recipient}
	}
	if err := d.messenger.Send(ctx, n.Recipient, n.Body); err != nil {
		return &SendError{Kind: ErrTransport, Recipient: n.Recipient, Err: err}
	}
	return nil
}

func (d *Dispatcher) observe(o Outcome) {
	for _, obs := range d.observers {
		ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
		obs.Observe(ctx, o)
		cancel()
	}
}

// Status is a point-in-time view of the queue.
type Status struct {
	Depth    int                   `json:"depth"`
	Draining bool                  `json:"draining"`
	InFlight string                `json:"in_flight,omitempty"`
	Pending  []PendingNotification `json:"pending"`
}

// Snapshot returns a copy of the queue state.
func (d *Dispatcher) Snapshot() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending := make([]PendingNotification, len(d.items))
	copy(pending, d.items)
	return Status{
		Depth:    len(d.items),
		Draining: d.draining,
		InFlight: d.inflight,
		Pending:  pending,
	}
}

// Len returns the number of queued notifications.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Remove drops a queued notification without delivering it. This is the
// operator's way to clear a head item that can never be delivered. It
// refuses while the item's send is in flight.
func (d *Dispatcher) Remove(id string) (PendingNotification, error) {
	d.mu.Lock()
	if id != "" && id == d.inflight {
		d.mu.Unlock()
		return PendingNotification{}, ErrInFlight
	}
	for i, n := range d.items {
		if n.ID != id {
			continue
		}
		d.items = append(d.items[:i:i], d.items[i+1:]...)
		d.mu.Unlock()

		d.logger.Warn("notification removed without delivery", "id", n.ID, "recipient", n.Recipient)
		if i == 0 {
			d.wakeUp()
		}
		return n, nil
	}
	d.mu.Unlock()
	return PendingNotification{}, ErrNotFound
}

// Close stops a running drain and waits for background drains to return.
// Notifications still queued are reported and dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()

	d.mu.Lock()
	lost := len(d.items)
	d.mu.Unlock()
	if lost > 0 {
		d.logger.Warn("dispatcher closed with undelivered notifications", "count", lost)
	}
}
