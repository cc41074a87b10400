package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// DeadLetterPrefix namespaces the parked-job lists: a boleta whose SII
// submission ran out of retries lands in "dlq:jobs:boletas" and stays there
// until someone resubmits it by hand.
const DeadLetterPrefix = "dlq:"

// DeadLetter is one parked job. BoletaID is lifted out of boleta payloads so
// operators can find the folio without decoding Payload.
type DeadLetter struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	BoletaID string          `json:"boleta_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

func deadLetter(ctx context.Context, broker Broker, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DeadLetter{
		Queue:    queue,
		JobType:  jobType,
		Payload:  payload,
		Reason:   reason,
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	if jobType == JobBoleta {
		var p BoletaJobPayload
		if json.Unmarshal(payload, &p) == nil {
			entry.BoletaID = p.BoletaID
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dead_letter: marshal failed, job dropped")
		return
	}
	key := DeadLetterPrefix + queue
	if err := broker.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Str("boleta_id", entry.BoletaID).Msg("dead_letter: push failed, job dropped")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("boleta_id", entry.BoletaID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dead_letter: job parked")
}

// DeadLetterDepth is the number of parked jobs for queue; /health reports it.
func DeadLetterDepth(ctx context.Context, broker Broker, queue string) (int64, error) {
	return broker.LLen(ctx, DeadLetterPrefix+queue).Result()
}
