package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// MultiRecorder передает итог каждому из вложенных регистраторов
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, report models.DispatchReport, err error) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, report, err)
		}
	}
}

// ReportLog хранит последний отчет по каждому инциденту в памяти с TTL
type ReportLog struct {
	cache *gocache.Cache
}

func NewReportLog(ttl time.Duration) *ReportLog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportLog{cache: gocache.New(ttl, ttl/2)}
}

func (l *ReportLog) Record(_ context.Context, report models.DispatchReport, _ error) {
	l.cache.SetDefault(report.IncidentID.String(), report)
}

// LastReport возвращает последний отчет диспетчеризации инцидента
func (l *ReportLog) LastReport(id uuid.UUID) (models.DispatchReport, bool) {
	val, found := l.cache.Get(id.String())
	if !found {
		return models.DispatchReport{}, false
	}
	return val.(models.DispatchReport), true
}

// ReportPublisher публикует отчет во внешнюю систему
type ReportPublisher interface {
	PublishReport(ctx context.Context, report models.DispatchReport) error
}

// PublishingRecorder отправляет отчеты через ReportPublisher
type PublishingRecorder struct {
	publisher ReportPublisher
	logger    *logrus.Logger
}

func NewPublishingRecorder(publisher ReportPublisher, logger *logrus.Logger) *PublishingRecorder {
	return &PublishingRecorder{publisher: publisher, logger: logger}
}

func (r *PublishingRecorder) Record(ctx context.Context, report models.DispatchReport, _ error) {
	if err := r.publisher.PublishReport(ctx, report); err != nil {
		r.logger.WithError(err).WithField("incident_id", report.IncidentID).Error("Failed to publish dispatch report")
	}
}
