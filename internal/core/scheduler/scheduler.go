package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs named jobs on cron expressions with a seconds field
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]cron.EntryID // job name -> entry id
	jobsMux sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	log.Info().Msg("⏰ Starting scheduler...")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("⏰ Stopping scheduler...")
	<-s.cron.Stop().Done()
	log.Info().Msg("✅ Scheduler stopped")
}

// AddJob schedules job under name, replacing any job already registered with that name.
// schedule is a six-field cron expression, e.g. "0 0 0 1 * *" for midnight on the 1st.
func (s *Scheduler) AddJob(name, schedule string, job func()) error {
	s.jobsMux.Lock()
	defer s.jobsMux.Unlock()

	entryID, err := s.cron.AddFunc(schedule, job)
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	if old, exists := s.jobs[name]; exists {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	log.Info().Str("job", name).Str("schedule", schedule).Msg("✅ Scheduled job")

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(name string) {
	s.jobsMux.Lock()
	defer s.jobsMux.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		log.Info().Str("job", name).Msg("🗑️ Removed scheduled job")
	}
}

// Jobs returns the registered job names, sorted
func (s *Scheduler) Jobs() []string {
	s.jobsMux.RLock()
	defer s.jobsMux.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
