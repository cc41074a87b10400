package worker

// email_worker.go
// Processes email jobs from QueueEmail: the boleta PDF sent to the customer.

import (
	"context"
	"encoding/json"
	"errors"

	"foodtruck/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail. The PDF travels in
// the job (base64 in JSON) so the worker does not need storage access.
type EmailJobPayload struct {
	ToEmail  string `json:"to_email"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Filename string `json:"filename,omitempty"`
	PDF      []byte `json:"pdf,omitempty"`
}

// Sender is satisfied by *infra.Mailer.
type Sender interface {
	Send(to, subject, body string, files ...infra.Attachment) error
}

type EmailWorker struct {
	mailer Sender
}

func NewEmailWorker(mailer Sender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one email. An empty recipient is dropped with a warning.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errors.New("email_worker: invalid payload: " + err.Error())
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	var files []infra.Attachment
	if len(payload.PDF) > 0 {
		files = append(files, infra.Attachment{
			Filename:    payload.Filename,
			ContentType: "application/pdf",
			Data:        payload.PDF,
		})
	}
	if err := w.mailer.Send(payload.ToEmail, payload.Subject, payload.Body, files...); err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("email_worker: failed to send email")
		return err
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: boleta sent")
	return nil
}
