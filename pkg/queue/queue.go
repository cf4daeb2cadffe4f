// Package queue is a small FIFO job queue on Redis lists. Producers RPUSH,
// the worker BLPOPs, and jobs that keep failing are parked on a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis list keys.
const (
	QueueRenders = "studio:jobs:renders"
	QueueDLQ     = "studio:jobs:dead"
)

const (
	MaxRetries   = 3
	RetryBackoff = 10 * time.Second

	// pollTimeout bounds one blocking pop so the worker notices shutdown.
	pollTimeout = 5 * time.Second
)

type JobType string

const JobTypeVideoRender JobType = "video_render"

// VideoRenderPayload names the render row a job drives.
type VideoRenderPayload struct {
	RenderID  uuid.UUID `json:"render_id"`
	WebinarID uuid.UUID `json:"webinar_id"`
}

// Job is what sits on a list. Attempt counts failed runs so far.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Attempt   int             `json:"attempt"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger.Named("queue")}
}

func newJob(t JobType, payload any) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return &Job{ID: uuid.NewString(), Type: t, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}

func (q *Queue) EnqueueVideoRender(ctx context.Context, p VideoRenderPayload) error {
	job, err := newJob(JobTypeVideoRender, p)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueRenders, job); err != nil {
		return err
	}
	q.logger.Debug("render job queued", zap.String("job", job.ID), zap.Stringer("render", p.RenderID))
	return nil
}

func (q *Queue) push(ctx context.Context, list string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := q.client.RPush(ctx, list, raw).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", list, err)
	}
	return nil
}

// Dequeue waits up to pollTimeout for the next render job. A nil job with a
// nil error means nothing usable arrived; undecodable entries are dropped.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	kv, err := q.client.BLPop(ctx, pollTimeout, QueueRenders).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	case len(kv) != 2:
		return nil, nil
	}
	job := new(Job)
	if err := json.Unmarshal([]byte(kv[1]), job); err != nil {
		q.logger.Warn("dropping undecodable job", zap.Error(err))
		return nil, nil
	}
	return job, nil
}

// Retry records a failed attempt. The job goes back on the render list until
// it has failed MaxRetries times, then it moves to the dead list and dead is true.
func (q *Queue) Retry(ctx context.Context, job *Job) (dead bool, err error) {
	job.Attempt++
	dead = job.Attempt >= MaxRetries
	list := QueueRenders
	if dead {
		list = QueueDLQ
	}
	if err := q.push(ctx, list, job); err != nil {
		q.logger.Error("requeue failed", zap.String("job", job.ID), zap.String("list", list), zap.Error(err))
		return dead, err
	}
	q.logger.Info("job requeued",
		zap.String("job", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Bool("dead", dead))
	return dead, nil
}
