package channel

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DryRunSender только пишет сообщение в лог; используется, когда Twilio не настроен
type DryRunSender struct {
	logger *logrus.Logger
}

func NewDryRunSender(logger *logrus.Logger) *DryRunSender {
	return &DryRunSender{logger: logger}
}

func (s *DryRunSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "dry-run-" + uuid.NewString()
	s.logger.WithFields(logrus.Fields{
		"to":         to,
		"message_id": id,
		"body_len":   len(body),
	}).Info("WhatsApp sender is not configured, message logged only")
	return id, nil
}
