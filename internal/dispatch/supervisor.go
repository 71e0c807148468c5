package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrSupervisorStopped = errors.New("dispatch supervisor is stopped")

// Dispatcher выполняет один запуск диспетчеризации
type Dispatcher interface {
	Dispatch(ctx context.Context, incident models.Incident) (models.DispatchReport, error)
}

// Recorder сохраняет итог запуска. err - терминальная ошибка запуска или nil.
type Recorder interface {
	Record(ctx context.Context, report models.DispatchReport, err error)
}

// Supervisor запускает диспетчеризацию в фоне, независимо от запроса,
// который проверил инцидент. Каждый запуск ограничен мягким дедлайном.
type Supervisor struct {
	dispatcher Dispatcher
	recorder   Recorder
	timeout    time.Duration
	logger     *logrus.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu упорядочивает wg.Add в Schedule и остановку в Shutdown
	mu      sync.Mutex
	stopped bool
}

func NewSupervisor(dispatcher Dispatcher, recorder Recorder, timeout time.Duration, logger *logrus.Logger) *Supervisor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		dispatcher: dispatcher,
		recorder:   recorder,
		timeout:    timeout,
		logger:     logger,
		base:       base,
		cancel:     cancel,
	}
}

// Schedule ставит диспетчеризацию инцидента в фон и сразу возвращается
func (s *Supervisor) Schedule(incident models.Incident) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "supervisor",
		"method":      "Schedule",
		"incident_id": incident.ID,
	})
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.WithError(ErrSupervisorStopped).Error("Dispatch not scheduled")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(incident, log)
	}()
	log.Info("Dispatch scheduled")
}

func (s *Supervisor) run(incident models.Incident, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	var (
		report models.DispatchReport
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("dispatch panic: %v", r)
				report = models.DispatchReport{
					IncidentID: incident.ID,
					StartedAt:  time.Now(),
					FinishedAt: time.Now(),
					Error:      err.Error(),
				}
				log.WithField("panic", r).Error("Recovered from dispatch panic")
			}
		}()
		report, err = s.dispatcher.Dispatch(ctx, incident)
	}()

	if err != nil {
		log.WithError(err).Warn("Dispatch finished with error")
	}
	if s.recorder != nil {
		// Запись не должна зависеть от истекшего дедлайна запуска
		recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer recordCancel()
		s.recorder.Record(recordCtx, report, err)
	}
}

// Shutdown перестает принимать запуски и ждет завершения текущих.
// Если ctx истекает раньше, оставшиеся запуски отменяются.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("Dispatch supervisor stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.logger.Warn("Dispatch supervisor stopped with cancelled runs")
		return ctx.Err()
	}
}
