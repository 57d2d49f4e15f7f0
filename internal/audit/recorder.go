package audit

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/keg-monitor-core/internal/events"
)

// recorderBuffer bounds queued entries. Entries beyond it are dropped.
const recorderBuffer = 256

// SourceEvents marks entries recorded from the event stream.
const SourceEvents = "events"

// Logger is the logging interface the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes device state changes and deletions to the activity trail.
// It implements events.Publisher; writes happen serially in Run.
type Recorder struct {
	repo   Repository
	ch     chan *Entry
	logger Logger
}

// NewRecorder creates a recorder writing to repo. Call Run to start writing.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo:   repo,
		ch:     make(chan *Entry, recorderBuffer),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for dropped entries and write failures.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Publish queues e when it is a recorded type. It never blocks.
func (r *Recorder) Publish(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TypeDeviceStateChanged, events.TypeDeviceDeleted:
	default:
		return
	}
	if e.DeviceID == "" {
		return
	}

	entry := &Entry{
		Action:    e.Type,
		DeviceID:  e.DeviceID,
		Source:    SourceEvents,
		Details:   detailsOf(e.Payload),
		CreatedAt: e.Timestamp,
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("activity queue full, entry dropped", "type", e.Type, "device_id", e.DeviceID)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	// The request that raised the event may already be gone.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("activity write failed",
			"action", entry.Action,
			"device_id", entry.DeviceID,
			"error", err,
		)
	}
}

// detailsOf flattens a payload into a JSON object, or nil.
func detailsOf(payload any) map[string]any {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return nil
	}
	return m
}
