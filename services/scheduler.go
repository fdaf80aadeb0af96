// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSessionJanitor sweeps abandoned sessions every minute. Players
// who walk away mid-quiz never send the explicit end action, so the
// time-based transition happens here.
func (s *SessionService) StartSessionJanitor(maxAge time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := s.CloseStaleSessions(maxAge)
			if err != nil {
				log.Printf("[Janitor] DB error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ Closed %d stale session(s) older than %s", n, maxAge)
			}
		}),
	)
}
