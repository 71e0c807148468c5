package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.IncidentStatus) (*models.Incident, error)
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// DispatchScheduler запускает диспетчеризацию проверенного инцидента в фоне.
// Schedule не блокирует вызывающего.
type DispatchScheduler interface {
	Schedule(incident models.Incident)
}

// ReportReader отдает последний отчет диспетчеризации
type ReportReader interface {
	LastReport(id uuid.UUID) (models.DispatchReport, bool)
}

// IncidentService определяет контракт бизнес-логики проверки инцидентов
type IncidentService interface {
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, status models.IncidentStatus) (*models.Incident, error)
	GetDispatchReport(ctx context.Context, id uuid.UUID) (*models.DispatchReport, error)
}

type incidentService struct {
	repo      IncidentRepository
	scheduler DispatchScheduler
	reports   ReportReader
	logger    *logrus.Logger
}

func NewIncidentService(repo IncidentRepository, scheduler DispatchScheduler, reports ReportReader, logger *logrus.Logger) IncidentService {
	return &incidentService{
		repo:      repo,
		scheduler: scheduler,
		reports:   reports,
		logger:    logger,
	}
}

// GetIncident получает инцидент по ID, сначала из кеша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident from cache")
	}
	if cached != nil {
		log.Info("Incident fetched from cache")
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}

	log.Info("Incident fetched successfully")
	return incident, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (s *incidentService) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"page":      page,
		"page_size": pageSize,
	})
	log.Info("Listing incidents")

	incidents, err := s.repo.ListIncidents(ctx, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// TransitionStatus переводит инцидент из reported в verified или rejected.
// Переход выполняется одним атомарным compare-and-set; повторный вызов
// для завершенного инцидента возвращает models.ErrAlreadyFinalized.
// После verified диспетчеризация ставится в фон, ее итог не влияет на ответ.
func (s *incidentService) TransitionStatus(ctx context.Context, id uuid.UUID, status models.IncidentStatus) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "TransitionStatus",
		"incident_id": id,
		"status":      status,
	})
	log.Info("Attempting to transition incident status")

	if !status.IsTransitionTarget() {
		log.Warn("Rejected transition to unsupported status")
		return nil, fmt.Errorf("service: status %q: %w", status, models.ErrInvalidStatus)
	}

	incident, err := s.repo.CompareAndSetStatus(ctx, id, models.StatusReported, status)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyFinalized) || errors.Is(err, models.ErrNotFound) {
			log.WithError(err).Warn("Incident status not changed")
		} else {
			log.WithError(err).Error("Failed to update incident status in repository")
		}
		return nil, fmt.Errorf("service: could not transition incident: %w", err)
	}

	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	if incident.Status == models.StatusVerified {
		s.scheduler.Schedule(*incident)
	}

	log.Info("Incident status updated successfully")
	return incident, nil
}

// GetDispatchReport возвращает последний отчет диспетчеризации инцидента
func (s *incidentService) GetDispatchReport(ctx context.Context, id uuid.UUID) (*models.DispatchReport, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetDispatchReport",
		"incident_id": id,
	})

	report, found := s.reports.LastReport(id)
	if !found {
		log.Info("Dispatch report not found")
		return nil, fmt.Errorf("service: no dispatch report for incident %s: %w", id, models.ErrNotFound)
	}
	return &report, nil
}
