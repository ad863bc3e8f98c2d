package services

import (
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

type jobKey struct {
	auctionID string
	kind      domain.JobKind
}

type timerJob struct {
	handle domain.JobHandle
	timer  *time.Timer
}

// TimerScheduler arms one in-process timer per (auction, kind). A fired
// handle only counts once it is claimed, so cancelling under the auction lock
// stops a firing that is already on its way.
type TimerScheduler struct {
	mu      sync.Mutex
	jobs    map[jobKey]*timerJob
	handler func(domain.JobHandle)
	log     logger.Logger
}

func NewTimerScheduler(log logger.Logger) *TimerScheduler {
	return &TimerScheduler{
		jobs: make(map[jobKey]*timerJob),
		log:  log,
	}
}

// SetHandler registers the callback run when a timer fires.
func (s *TimerScheduler) SetHandler(handler func(domain.JobHandle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *TimerScheduler) Schedule(auctionID string, firesAt time.Time, kind domain.JobKind) domain.JobHandle {
	handle := domain.JobHandle{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		Kind:      kind,
		FiresAt:   firesAt,
	}
	key := jobKey{auctionID: auctionID, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[key]; ok {
		existing.timer.Stop()
	}
	job := &timerJob{handle: handle}
	job.timer = time.AfterFunc(time.Until(firesAt), func() { s.fire(handle) })
	s.jobs[key] = job

	s.log.Debug("Scheduled job", "auction_id", auctionID, "kind", kind, "fires_at", firesAt, "job_id", handle.ID)
	return handle
}

func (s *TimerScheduler) fire(handle domain.JobHandle) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		s.log.Warn("Job fired without handler", "auction_id", handle.AuctionID, "kind", handle.Kind)
		return
	}
	handler(handle)
}

// Cancel ignores handles that were already replaced or consumed.
func (s *TimerScheduler) Cancel(handle domain.JobHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{auctionID: handle.AuctionID, kind: handle.Kind}
	if job, ok := s.jobs[key]; ok && job.handle.ID == handle.ID {
		job.timer.Stop()
		delete(s.jobs, key)
	}
}

func (s *TimerScheduler) CancelAuction(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range []domain.JobKind{domain.JobStart, domain.JobEnd} {
		key := jobKey{auctionID: auctionID, kind: kind}
		if job, ok := s.jobs[key]; ok {
			job.timer.Stop()
			delete(s.jobs, key)
		}
	}
}

func (s *TimerScheduler) Claim(handle domain.JobHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{auctionID: handle.AuctionID, kind: handle.Kind}
	job, ok := s.jobs[key]
	if !ok || job.handle.ID != handle.ID {
		return false
	}
	job.timer.Stop()
	delete(s.jobs, key)
	return true
}

func (s *TimerScheduler) Pending(auctionID string, kind domain.JobKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobKey{auctionID: auctionID, kind: kind}]
	return ok
}

// Stop disarms every timer.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, key)
	}
}
