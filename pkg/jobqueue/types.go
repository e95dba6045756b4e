package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrInvalidConfig = errors.New("jobqueue: invalid config")

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// Message is what producers enqueue. EventID deduplicates retried
// enqueues of the same logical job.
type Message struct {
	Topic   string
	Payload []byte
	EventID uuid.UUID
}

// Meta describes a claimed job at dispatch time.
type Meta struct {
	Table    pgx.Identifier
	Topic    string
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

type DispatchedJob struct {
	Meta    Meta
	Payload []byte
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job DispatchedJob) error
}

type HandlerFunc func(ctx context.Context, job DispatchedJob) error

// DeadFunc observes a job that exhausted its attempt budget. The job is
// already retired when the hook runs; the hook's job is to settle
// whatever domain state the dead job leaves dangling.
type DeadFunc func(ctx context.Context, job DispatchedJob, lastError string)

// Mux routes jobs to handlers by topic.
type Mux struct {
	handlers map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

func (m *Mux) Handle(topic string, handler HandlerFunc) {
	if _, ok := m.handlers[topic]; ok {
		panic(fmt.Sprintf("jobqueue: handler for topic %q registered twice", topic))
	}
	m.handlers[topic] = handler
}

func (m *Mux) Dispatch(ctx context.Context, job DispatchedJob) error {
	handler, ok := m.handlers[job.Meta.Topic]
	if !ok {
		return fmt.Errorf("jobqueue: no handler for topic %q", job.Meta.Topic)
	}
	return handler(ctx, job)
}

func TableLabel(table pgx.Identifier) string {
	return table.Sanitize()
}
