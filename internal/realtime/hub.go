// Package realtime fans recorded project activity out to live websocket subscribers.
package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/domain"
)

const (
	defaultBufferSize = 64
	defaultGapTimeout = 2 * time.Second
)

// Subscriber receives the activity of one project until it is unsubscribed or dropped
type Subscriber struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID

	send   chan *domain.ActivityLog
	closed bool
}

// Events returns the channel entries are delivered on. It is closed when the subscriber leaves the hub
func (s *Subscriber) Events() <-chan *domain.ActivityLog {
	return s.send
}

// stream is the delivery state of one project.
// next is the seq expected to go out next; zero means it is not known yet.
type stream struct {
	subs    map[uuid.UUID]*Subscriber
	next    int64
	pending map[int64]*domain.ActivityLog
	timer   *time.Timer
}

// Hub keeps per-project subscriber sets and delivers each project's entries in seq order.
// Entries may be published out of order: those ahead of the expected seq wait in a buffer
// until the gap is filled or the gap timeout expires.
type Hub struct {
	mu         sync.Mutex
	streams    map[uuid.UUID]*stream
	bufferSize int
	gapTimeout time.Duration
	logger     *zap.Logger
}

// HubOption customizes a Hub
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber queue length
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithGapTimeout sets how long entries wait for a missing predecessor before they are flushed anyway
func WithGapTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.gapTimeout = d
		}
	}
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		streams:    make(map[uuid.UUID]*stream),
		bufferSize: defaultBufferSize,
		gapTimeout: defaultGapTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers interest in a project's activity.
// The first sequenced entry published afterwards sets the expected order.
func (h *Hub) Subscribe(projectID, userID uuid.UUID) *Subscriber {
	return h.SubscribeFrom(projectID, userID, -1)
}

// SubscribeFrom registers interest in a project's activity whose last committed seq is lastSeq.
// A negative lastSeq means it is unknown.
func (h *Hub) SubscribeFrom(projectID, userID uuid.UUID, lastSeq int64) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		send:      make(chan *domain.ActivityLog, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.streams[projectID]
	if !ok {
		st = &stream{
			subs:    make(map[uuid.UUID]*Subscriber),
			pending: make(map[int64]*domain.ActivityLog),
		}
		h.streams[projectID] = st
	}
	if st.next == 0 && lastSeq >= 0 {
		st.next = lastSeq + 1
	}
	st.subs[sub.ID] = sub

	h.logger.Debug("activity subscriber registered",
		zap.String("project_id", projectID.String()),
		zap.String("subscriber_id", sub.ID.String()),
		zap.Int64("next_seq", st.next),
	)
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call more than once
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.remove(sub)
}

// Publish hands the entry to every subscriber of its project without blocking.
// A subscriber whose queue is full is dropped; the others and the caller are unaffected.
// Entries without a seq are delivered immediately.
func (h *Hub) Publish(_ context.Context, entry *domain.ActivityLog) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.streams[entry.ProjectID]
	if !ok {
		return nil
	}

	switch {
	case entry.Seq == 0:
		h.deliver(st, entry)
	case st.next == 0 || entry.Seq == st.next:
		h.deliver(st, entry)
		st.next = entry.Seq + 1
		h.drain(st)
	case entry.Seq < st.next:
		h.logger.Debug("skipping stale activity",
			zap.String("project_id", entry.ProjectID.String()),
			zap.Int64("seq", entry.Seq),
			zap.Int64("next_seq", st.next),
		)
	default:
		st.pending[entry.Seq] = entry
		if st.timer == nil {
			projectID := entry.ProjectID
			st.timer = time.AfterFunc(h.gapTimeout, func() { h.flushGap(projectID, st) })
		}
	}

	return nil
}

// SubscriberCount returns the number of live subscribers of a project
func (h *Hub) SubscriberCount(projectID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.streams[projectID]; ok {
		return len(st.subs)
	}
	return 0
}

// Close drops every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, st := range h.streams {
		for _, sub := range st.subs {
			h.remove(sub)
		}
	}
}

// drain delivers buffered entries that became contiguous. Called with h.mu held
func (h *Hub) drain(st *stream) {
	for {
		entry, ok := st.pending[st.next]
		if !ok {
			break
		}
		delete(st.pending, st.next)
		h.deliver(st, entry)
		st.next++
	}

	if len(st.pending) == 0 && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// flushGap gives up on a missing seq and delivers everything buffered in seq order
func (h *Hub) flushGap(projectID uuid.UUID, st *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.streams[projectID] != st || len(st.pending) == 0 {
		return
	}
	st.timer = nil

	seqs := make([]int64, 0, len(st.pending))
	for seq := range st.pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	h.logger.Warn("activity gap not filled in time",
		zap.String("project_id", projectID.String()),
		zap.Int64("missing_from", st.next),
		zap.Int64("missing_to", seqs[0]-1),
	)

	for _, seq := range seqs {
		h.deliver(st, st.pending[seq])
		delete(st.pending, seq)
	}
	st.next = seqs[len(seqs)-1] + 1
}

// deliver must be called with h.mu held
func (h *Hub) deliver(st *stream, entry *domain.ActivityLog) {
	for _, sub := range st.subs {
		select {
		case sub.send <- entry:
		default:
			h.logger.Warn("dropping slow activity subscriber",
				zap.String("project_id", entry.ProjectID.String()),
				zap.String("subscriber_id", sub.ID.String()),
			)
			h.remove(sub)
		}
	}
}

// remove must be called with h.mu held.
// The project's ordering state goes away with its last subscriber.
func (h *Hub) remove(sub *Subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.send)

	st, ok := h.streams[sub.ProjectID]
	if !ok {
		return
	}
	delete(st.subs, sub.ID)
	if len(st.subs) == 0 {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(h.streams, sub.ProjectID)
	}
}
