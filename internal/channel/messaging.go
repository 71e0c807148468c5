package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Sender - клиент провайдера сообщений.
// Ошибки, обернутые в models.ErrPermanentDelivery, не повторяются.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// MessagingOptions - настройки канала WhatsApp
type MessagingOptions struct {
	CountryCode   string
	MaxAttempts   int
	BaseDelay     time.Duration
	RatePerSecond float64
	Burst         int
}

// MessagingChannel доставляет сообщение одной службе через провайдера
type MessagingChannel struct {
	sender  Sender
	limiter *rate.Limiter
	opts    MessagingOptions
	logger  *logrus.Logger
}

func NewMessagingChannel(sender Sender, opts MessagingOptions, logger *logrus.Logger) *MessagingChannel {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &MessagingChannel{
		sender:  sender,
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
		logger:  logger,
	}
}

// Deliver отправляет сообщение службе. Номера вне мобильного формата пропускаются,
// ошибки провайдера фиксируются в итоге и не возвращаются вызывающему.
func (m *MessagingChannel) Deliver(ctx context.Context, target models.Responder, message string) models.DispatchAttempt {
	attempt := models.DispatchAttempt{
		Channel:  models.ChannelWhatsApp,
		Category: target.Category,
		TargetID: target.ID,
	}
	log := m.logger.WithFields(logrus.Fields{
		"channel":   models.ChannelWhatsApp,
		"category":  target.Category,
		"target_id": target.ID,
	})

	if !IsReachable(target.Phone) {
		log.WithField("phone", target.Phone).Info("Skipped WhatsApp delivery: not a mobile number")
		attempt.Outcome = models.OutcomeSkipped
		attempt.Reason = "not a mobile number"
		attempt.Timestamp = time.Now()
		return attempt
	}

	to := Normalize(target.Phone, m.opts.CountryCode)
	messageID, attempts, err := m.sendWithRetry(ctx, to, message, log)
	attempt.Attempts = attempts
	attempt.Timestamp = time.Now()
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", models.ErrChannelDelivery, target.ID, err)
		log.WithError(err).WithField("attempts", attempts).Error("WhatsApp delivery failed")
		attempt.Outcome = models.OutcomeFailed
		attempt.Reason = err.Error()
		return attempt
	}

	log.WithFields(logrus.Fields{"to": to, "message_id": messageID, "attempts": attempts}).Info("WhatsApp message sent")
	attempt.Outcome = models.OutcomeDelivered
	attempt.ProviderMessageID = messageID
	return attempt
}

func (m *MessagingChannel) sendWithRetry(ctx context.Context, to, message string, log *logrus.Entry) (string, int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.opts.BaseDelay
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	var (
		messageID string
		attempts  int
	)
	operation := func() error {
		attempts++
		if err := m.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		id, err := m.sender.Send(ctx, to, message)
		if err != nil {
			if errors.Is(err, models.ErrPermanentDelivery) {
				return backoff.Permanent(err)
			}
			return err
		}
		messageID = id
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("Transient WhatsApp provider error, retrying")
	}

	retries := uint64(m.opts.MaxAttempts - 1)
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	return messageID, attempts, err
}
