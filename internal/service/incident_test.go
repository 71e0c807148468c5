package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/dispatch"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/shenikar/accident_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

// newTestIncidentService создает сервис с моками для тестов.
func newTestIncidentService(t *testing.T) (IncidentService, *mocks.MockIncidentRepository, *mocks.MockDispatchScheduler, *mocks.MockReportReader) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIncidentRepository(ctrl)
	schedulerMock := mocks.NewMockDispatchScheduler(ctrl)
	reportsMock := mocks.NewMockReportReader(ctrl)

	service := NewIncidentService(repoMock, schedulerMock, reportsMock, newTestLogger())
	return service, repoMock, schedulerMock, reportsMock
}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:          incidentID,
		Description: "Инцидент из кеша",
	}

	// Ожидания
	repoMock.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:          incidentID,
		Description: "Инцидент из БД",
	}

	// Ожидания
	// 1. Промах кеша
	repoMock.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	repoMock.EXPECT().
		GetByID(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// 3. Запись в кеш
	repoMock.EXPECT().
		SetIncidentCache(ctx, expectedIncident).
		Return(nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_CacheErrorFallsBackToDB(t *testing.T) {
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{ID: incidentID}

	repoMock.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, errors.New("redis down")).Times(1)
	repoMock.EXPECT().GetByID(ctx, incidentID).Return(expectedIncident, nil).Times(1)
	repoMock.EXPECT().SetIncidentCache(ctx, expectedIncident).Return(errors.New("redis down")).Times(1)

	incident, err := service.GetIncident(ctx, incidentID)

	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_NotFound(t *testing.T) {
	// Подготовка
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	dbError := fmt.Errorf("incident with id %s: %w", incidentID, models.ErrNotFound)

	// Ожидания
	repoMock.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(nil, nil).
		Times(1)
	repoMock.EXPECT().
		GetByID(ctx, incidentID).
		Return(nil, dbError).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorContains(t, err, "could not get incident")
}

func TestListIncidents_Success(t *testing.T) {
	// Подготовка
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	page, pageSize := 1, 10
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Description: "Инцидент 1"},
		{ID: uuid.New(), Description: "Инцидент 2"},
	}

	// Ожидания
	repoMock.EXPECT().ListIncidents(ctx, page, pageSize).Return(expectedIncidents, nil).Times(1)

	// Действие
	incidents, err := service.ListIncidents(ctx, page, pageSize)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncidents, incidents)
}

func TestListIncidents_NormalizesPaging(t *testing.T) {
	service, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	repoMock.EXPECT().ListIncidents(ctx, 1, 20).Return([]*models.Incident{}, nil).Times(1)

	_, err := service.ListIncidents(ctx, 0, 500)

	require.NoError(t, err)
}

func TestTransitionStatus_VerifiedSchedulesDispatch(t *testing.T) {
	// Подготовка
	service, repoMock, schedulerMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	updated := &models.Incident{ID: incidentID, Status: models.StatusVerified}

	// Ожидания
	gomock.InOrder(
		repoMock.EXPECT().
			CompareAndSetStatus(ctx, incidentID, models.StatusReported, models.StatusVerified).
			Return(updated, nil),
		repoMock.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil),
		schedulerMock.EXPECT().Schedule(*updated).Times(1),
	)

	// Действие
	incident, err := service.TransitionStatus(ctx, incidentID, models.StatusVerified)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, updated, incident)
}

func TestTransitionStatus_RejectedDoesNotDispatch(t *testing.T) {
	service, repoMock, schedulerMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	updated := &models.Incident{ID: incidentID, Status: models.StatusRejected}

	repoMock.EXPECT().
		CompareAndSetStatus(ctx, incidentID, models.StatusReported, models.StatusRejected).
		Return(updated, nil).Times(1)
	repoMock.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil).Times(1)
	schedulerMock.EXPECT().Schedule(gomock.Any()).Times(0)

	incident, err := service.TransitionStatus(ctx, incidentID, models.StatusRejected)

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, incident.Status)
}

func TestTransitionStatus_InvalidStatus(t *testing.T) {
	service, repoMock, schedulerMock, _ := newTestIncidentService(t)

	// Репозиторий и планировщик не вызываются
	repoMock.EXPECT().CompareAndSetStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	schedulerMock.EXPECT().Schedule(gomock.Any()).Times(0)

	for _, status := range []models.IncidentStatus{"", models.StatusReported, "closed"} {
		incident, err := service.TransitionStatus(context.Background(), uuid.New(), status)

		assert.Nil(t, incident)
		assert.ErrorIs(t, err, models.ErrInvalidStatus)
	}
}

func TestTransitionStatus_RepositoryErrors(t *testing.T) {
	cases := []struct {
		name    string
		repoErr error
	}{
		{name: "not found", repoErr: fmt.Errorf("incident: %w", models.ErrNotFound)},
		{name: "already finalized", repoErr: fmt.Errorf("incident is verified: %w", models.ErrAlreadyFinalized)},
		{name: "database error", repoErr: errors.New("connection reset")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service, repoMock, schedulerMock, _ := newTestIncidentService(t)
			ctx := context.Background()
			incidentID := uuid.New()

			repoMock.EXPECT().
				CompareAndSetStatus(ctx, incidentID, models.StatusReported, models.StatusVerified).
				Return(nil, tc.repoErr).Times(1)
			repoMock.EXPECT().InvalidateIncidentCache(gomock.Any(), gomock.Any()).Times(0)
			schedulerMock.EXPECT().Schedule(gomock.Any()).Times(0)

			incident, err := service.TransitionStatus(ctx, incidentID, models.StatusVerified)

			assert.Nil(t, incident)
			assert.ErrorIs(t, err, tc.repoErr)
		})
	}
}

func TestTransitionStatus_CacheInvalidationFailureIgnored(t *testing.T) {
	service, repoMock, schedulerMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	updated := &models.Incident{ID: incidentID, Status: models.StatusVerified}

	repoMock.EXPECT().CompareAndSetStatus(ctx, incidentID, models.StatusReported, models.StatusVerified).Return(updated, nil)
	repoMock.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(errors.New("redis down"))
	schedulerMock.EXPECT().Schedule(*updated)

	_, err := service.TransitionStatus(ctx, incidentID, models.StatusVerified)

	require.NoError(t, err)
}

func TestGetDispatchReport(t *testing.T) {
	service, _, _, reportsMock := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	report := models.DispatchReport{IncidentID: incidentID}

	reportsMock.EXPECT().LastReport(incidentID).Return(report, true).Times(1)

	got, err := service.GetDispatchReport(ctx, incidentID)

	require.NoError(t, err)
	assert.Equal(t, &report, got)
}

func TestGetDispatchReport_NotFound(t *testing.T) {
	service, _, _, reportsMock := newTestIncidentService(t)
	incidentID := uuid.New()

	reportsMock.EXPECT().LastReport(incidentID).Return(models.DispatchReport{}, false).Times(1)

	got, err := service.GetDispatchReport(context.Background(), incidentID)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// memoryRepository - репозиторий в памяти с атомарным compare-and-set
type memoryRepository struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]models.Incident
}

func newMemoryRepository(incidents ...models.Incident) *memoryRepository {
	r := &memoryRepository{incidents: make(map[uuid.UUID]models.Incident)}
	for _, inc := range incidents {
		r.incidents[inc.ID] = inc
	}
	return r
}

func (r *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &inc, nil
}

func (r *memoryRepository) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to models.IncidentStatus) (*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if inc.Status != from {
		return nil, models.ErrAlreadyFinalized
	}
	inc.Status = to
	inc.UpdatedAt = time.Now()
	r.incidents[id] = inc
	return &inc, nil
}

func (r *memoryRepository) ListIncidents(context.Context, int, int) ([]*models.Incident, error) {
	return nil, nil
}

func (r *memoryRepository) GetIncidentFromCache(context.Context, uuid.UUID) (*models.Incident, error) {
	return nil, nil
}

func (r *memoryRepository) SetIncidentCache(context.Context, *models.Incident) error { return nil }

func (r *memoryRepository) InvalidateIncidentCache(context.Context, uuid.UUID) error { return nil }

type countingScheduler struct {
	mu        sync.Mutex
	scheduled []models.Incident
}

func (s *countingScheduler) Schedule(incident models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, incident)
}

func TestTransitionStatus_ConcurrentVerifyDispatchesOnce(t *testing.T) {
	// Подготовка
	incident := models.Incident{ID: uuid.New(), Status: models.StatusReported}
	repo := newMemoryRepository(incident)
	scheduler := &countingScheduler{}
	service := NewIncidentService(repo, scheduler, dispatch.NewReportLog(time.Minute), newTestLogger())

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		finalized int
	)

	// Действие
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.TransitionStatus(context.Background(), incident.ID, models.StatusVerified)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrAlreadyFinalized):
				finalized++
			}
		}()
	}
	wg.Wait()

	// Проверки
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, finalized)
	assert.Len(t, scheduler.scheduled, 1)
}

func TestTransitionStatus_SecondTransitionFails(t *testing.T) {
	for _, order := range [][2]models.IncidentStatus{
		{models.StatusVerified, models.StatusRejected},
		{models.StatusRejected, models.StatusVerified},
	} {
		incident := models.Incident{ID: uuid.New(), Status: models.StatusReported}
		repo := newMemoryRepository(incident)
		service := NewIncidentService(repo, &countingScheduler{}, dispatch.NewReportLog(time.Minute), newTestLogger())
		ctx := context.Background()

		_, err := service.TransitionStatus(ctx, incident.ID, order[0])
		require.NoError(t, err)

		_, err = service.TransitionStatus(ctx, incident.ID, order[1])
		require.ErrorIs(t, err, models.ErrAlreadyFinalized)

		stored, err := repo.GetByID(ctx, incident.ID)
		require.NoError(t, err)
		assert.Equal(t, order[0], stored.Status)
	}
}

type blockingDispatcher struct {
	release chan struct{}
	done    chan struct{}
}

func (d *blockingDispatcher) Dispatch(_ context.Context, incident models.Incident) (models.DispatchReport, error) {
	<-d.release
	defer close(d.done)
	return models.DispatchReport{IncidentID: incident.ID}, errors.New("provider down")
}

func TestTransitionStatus_ReturnsBeforeDispatchCompletes(t *testing.T) {
	// Подготовка
	incident := models.Incident{ID: uuid.New(), Status: models.StatusReported}
	dispatcher := &blockingDispatcher{release: make(chan struct{}), done: make(chan struct{})}
	reports := dispatch.NewReportLog(time.Minute)
	supervisor := dispatch.NewSupervisor(dispatcher, reports, time.Second, newTestLogger())
	service := NewIncidentService(newMemoryRepository(incident), supervisor, reports, newTestLogger())
	ctx := context.Background()

	// Действие
	updated, err := service.TransitionStatus(ctx, incident.ID, models.StatusVerified)

	// Проверки: ответ получен, пока диспетчеризация еще идет
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, updated.Status)
	_, err = service.GetDispatchReport(ctx, incident.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	close(dispatcher.release)
	<-dispatcher.done
	require.NoError(t, supervisor.Shutdown(ctx))

	report, err := service.GetDispatchReport(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.ID, report.IncidentID)
}
