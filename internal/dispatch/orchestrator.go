package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/shenikar/accident_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Locator ищет ближайшие службы по категориям
type Locator interface {
	Locate(ctx context.Context, longitude, latitude, radiusMeters float64) (models.NearbyResponders, error)
}

// Composer строит текст оповещения
type Composer interface {
	Compose(incident models.Incident) string
}

// Deliverer доставляет сообщение одной службе; ошибки фиксируются в итоге
type Deliverer interface {
	Deliver(ctx context.Context, target models.Responder, message string) models.DispatchAttempt
}

// Broadcaster ставит событие в очередь рассылки подключенным клиентам
type Broadcaster interface {
	Broadcast(event realtime.Event) error
}

// RealtimeTarget - идентификатор адресата широковещательного события
const RealtimeTarget = "all"

type Options struct {
	RadiusMeters float64
	// Сколько доставок выполняется одновременно
	Concurrency int
}

// Orchestrator выполняет один запуск диспетчеризации проверенного инцидента
type Orchestrator struct {
	locator     Locator
	composer    Composer
	deliverer   Deliverer
	broadcaster Broadcaster
	opts        Options
	logger      *logrus.Logger
}

func NewOrchestrator(locator Locator, composer Composer, deliverer Deliverer, broadcaster Broadcaster, opts Options, logger *logrus.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		locator:     locator,
		composer:    composer,
		deliverer:   deliverer,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logger,
	}
}

// Dispatch находит службы, рассылает одно сообщение всем адресатам и
// событие new-emergency подключенным клиентам. Ошибка возвращается только
// при недоступности справочника или превышении дедлайна ctx; отказы
// отдельных адресатов остаются в отчете.
func (o *Orchestrator) Dispatch(ctx context.Context, incident models.Incident) (models.DispatchReport, error) {
	log := o.logger.WithFields(logrus.Fields{
		"service":     "dispatch",
		"method":      "Dispatch",
		"incident_id": incident.ID,
	})
	report := models.DispatchReport{
		IncidentID: incident.ID,
		StartedAt:  time.Now(),
		Located:    make(map[models.Category]int, len(models.DispatchOrder)),
	}

	nearby, err := o.locator.Locate(ctx, incident.Location.Longitude, incident.Location.Latitude, o.opts.RadiusMeters)
	if err != nil {
		report.FinishedAt = time.Now()
		// Дедлайн, истекший во время запроса справочника, - это таймаут, а не отказ индекса
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			report.Error = models.ErrOrchestrationTimeout.Error()
			log.WithError(err).Error("Dispatch exceeded its deadline while locating responders")
			return report, fmt.Errorf("dispatch: %w", models.ErrOrchestrationTimeout)
		}
		report.Error = err.Error()
		log.WithError(err).Error("Dispatch aborted: responders could not be located")
		return report, fmt.Errorf("dispatch: %w", err)
	}

	message := o.composer.Compose(incident)

	targets := make([]models.Responder, 0)
	for _, category := range models.DispatchOrder {
		found := nearby.ByCategory(category)
		report.Located[category] = len(found)
		targets = append(targets, found...)
	}

	results := make([]models.DispatchAttempt, len(targets))
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)

	// Событие для клиентов не ждет рассылки по категориям
	broadcast := make(chan models.DispatchAttempt, 1)
	go func() {
		broadcast <- o.broadcast(incident)
	}()

	// Категории ставятся в очередь по приоритету, доставки внутри идут параллельно
	for i, target := range targets {
		g.Go(func() error {
			results[i] = o.deliver(ctx, incident.ID, target, message)
			return nil
		})
	}
	_ = g.Wait()

	report.Attempts = append([]models.DispatchAttempt{<-broadcast}, results...)
	report.FinishedAt = time.Now()

	fields := logrus.Fields{
		"delivered":   report.Count(models.OutcomeDelivered),
		"skipped":     report.Count(models.OutcomeSkipped),
		"failed":      report.Count(models.OutcomeFailed),
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		report.Error = models.ErrOrchestrationTimeout.Error()
		log.WithFields(fields).Error("Dispatch exceeded its deadline")
		return report, fmt.Errorf("dispatch: %w", models.ErrOrchestrationTimeout)
	}

	log.WithFields(fields).Info("Dispatch completed")
	return report, nil
}

// deliver доставляет сообщение одному адресату. Паника канала фиксируется
// как неудачная попытка и не затрагивает остальных адресатов.
func (o *Orchestrator) deliver(ctx context.Context, incidentID uuid.UUID, target models.Responder, message string) (attempt models.DispatchAttempt) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"incident_id": incidentID,
				"target_id":   target.ID,
				"panic":       r,
			}).Error("Recovered from delivery panic")
			attempt = models.DispatchAttempt{
				Channel:   models.ChannelWhatsApp,
				TargetID:  target.ID,
				Attempts:  1,
				Outcome:   models.OutcomeFailed,
				Reason:    fmt.Sprintf("%s: panic: %v", models.ErrChannelDelivery, r),
				Timestamp: time.Now(),
			}
		}
		attempt.IncidentID = incidentID
		attempt.Category = target.Category
	}()
	return o.deliverer.Deliver(ctx, target, message)
}

func (o *Orchestrator) broadcast(incident models.Incident) (attempt models.DispatchAttempt) {
	attempt = models.DispatchAttempt{
		IncidentID: incident.ID,
		Channel:    models.ChannelRealtime,
		TargetID:   RealtimeTarget,
		Attempts:   1,
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"incident_id": incident.ID,
				"panic":       r,
			}).Error("Recovered from broadcast panic")
			attempt.Outcome = models.OutcomeFailed
			attempt.Reason = fmt.Sprintf("panic: %v", r)
			attempt.Timestamp = time.Now()
		}
	}()
	if err := o.broadcaster.Broadcast(realtime.NewEmergencyEvent(incident)); err != nil {
		o.logger.WithError(err).WithField("incident_id", incident.ID).Warn("Failed to broadcast new emergency")
		attempt.Outcome = models.OutcomeFailed
		attempt.Reason = err.Error()
	} else {
		attempt.Outcome = models.OutcomeDelivered
	}
	attempt.Timestamp = time.Now()
	return attempt
}
