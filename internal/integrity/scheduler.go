package integrity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	checker  *Checker
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(checker *Checker, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		checker:  checker,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start запускает периодическую проверку. interval <= 0: планировщик выключен.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("integrity scheduler disabled")
		return
	}
	s.log.Info("starting integrity scheduler", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop останавливает планировщик и ждёт текущую проверку
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("stopping integrity scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Выполняем сразу при старте
	if _, err := s.checker.Run(ctx); err != nil {
		s.log.Error("initial integrity check failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.checker.Run(ctx); err != nil {
				s.log.Error("integrity check failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("integrity scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("integrity scheduler cancelled")
			return
		}
	}
}

// RunOnceNow выполняет проверку немедленно
func (s *Scheduler) RunOnceNow(ctx context.Context) (Report, error) {
	return s.checker.Run(ctx)
}
