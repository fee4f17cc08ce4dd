// Package notification delivers watchlist-routed events to a configured
// webhook endpoint through a bounded background queue. Delivery is
// best-effort by policy: failures are logged, never retried, and a full
// queue drops the event rather than blocking the routing path.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/routing"
)

const (
	queueSize   = 64
	sendTimeout = 15 * time.Second
)

// Event is one routed-item notification.
type Event struct {
	UserID    int64             `json:"userId"`
	UserName  string            `json:"userName,omitempty"`
	Title     string            `json:"title"`
	MediaType routing.MediaType `json:"mediaType"`
}

// Sender delivers one event to the outside world.
type Sender interface {
	SendRouted(ctx context.Context, event Event) error
}

// Recorder persists the fact that a (user, title) pair was notified,
// which is what dispatch's dedup lookup reads.
type Recorder interface {
	RecordNotification(ctx context.Context, userID int64, title string) error
}

// Queue is the background delivery worker. It satisfies the dispatch
// layer's notifier interface.
type Queue struct {
	sender   Sender
	recorder Recorder
	logger   zerolog.Logger

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// NewQueue creates a notification queue. Call Start before use.
func NewQueue(sender Sender, recorder Recorder, logger zerolog.Logger) *Queue {
	return &Queue{
		sender:   sender,
		recorder: recorder,
		logger:   logger.With().Str("component", "notification").Logger(),
		events:   make(chan Event, queueSize),
	}
}

// Start launches the delivery worker.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop drains the queue and waits for in-flight deliveries. Safe to
// call once; further Send calls after Stop are dropped.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.events) })
	q.wg.Wait()
}

// SendWatchlistNotification enqueues a routed-item event. Never blocks:
// when the queue is full the event is dropped with a warning.
func (q *Queue) SendWatchlistNotification(userID int64, userName, title string, mediaType routing.MediaType) {
	event := Event{UserID: userID, UserName: userName, Title: title, MediaType: mediaType}
	select {
	case q.events <- event:
	default:
		q.logger.Warn().Str("title", title).Int64("userId", userID).
			Msg("notification queue full, dropping event")
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for event := range q.events {
		q.deliver(event)
	}
}

func (q *Queue) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := q.sender.SendRouted(ctx, event); err != nil {
		q.logger.Error().Err(err).Str("title", event.Title).Int64("userId", event.UserID).
			Msg("notification delivery failed")
		return
	}

	if q.recorder != nil {
		if err := q.recorder.RecordNotification(ctx, event.UserID, event.Title); err != nil {
			q.logger.Error().Err(err).Str("title", event.Title).
				Msg("failed to record delivered notification")
		}
	}

	q.logger.Debug().Str("title", event.Title).Int64("userId", event.UserID).
		Msg("notification delivered")
}

// NopSender discards every event. Used when no webhook is configured.
type NopSender struct{}

func (NopSender) SendRouted(context.Context, Event) error { return nil }
