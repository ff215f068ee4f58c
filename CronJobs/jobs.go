package CronJobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"SpareLink/Models"

	"github.com/robfig/cron/v3"
)

// BreachFlagger marks calls whose turnaround passed the SLA and returns the
// newly flagged ones.
type BreachFlagger interface {
	FlagBreaches(ctx context.Context) ([]Models.TATBreach, error)
}

// Notifier is told about every newly flagged breach.
type Notifier interface {
	NotifyBreaches(ctx context.Context, breaches []Models.TATBreach) error
}

// TATMonitor periodically flags TAT breaches
type TATMonitor struct {
	cronScheduler  *cron.Cron
	flagger        BreachFlagger
	notifiers      []Notifier
	schedule       string
	runImmediately bool
	timeout        time.Duration
	jobID          cron.EntryID
	mu             sync.Mutex
}

// NewTATMonitor creates a monitor. schedule uses the six-field cron format
// with seconds, e.g. "0 */15 * * * *" for every 15 minutes.
func NewTATMonitor(flagger BreachFlagger, schedule string, runImmediately bool) *TATMonitor {
	return &TATMonitor{
		cronScheduler:  cron.New(cron.WithSeconds()),
		flagger:        flagger,
		schedule:       schedule,
		runImmediately: runImmediately,
		timeout:        2 * time.Minute,
	}
}

// AddNotifier sends alerts for new breaches through n. Must be called before Start.
func (m *TATMonitor) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Start schedules the check and starts the scheduler
func (m *TATMonitor) Start() error {
	var err error
	m.jobID, err = m.cronScheduler.AddFunc(m.schedule, func() {
		m.runCheck("scheduled")
	})
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}

	m.cronScheduler.Start()
	log.Printf("TAT monitor started with schedule %q", m.schedule)

	if m.runImmediately {
		go m.runCheck("initial")
	}
	return nil
}

// Stop terminates the scheduler and waits for a running check
func (m *TATMonitor) Stop() {
	if m.cronScheduler != nil {
		<-m.cronScheduler.Stop().Done()
		log.Println("TAT monitor stopped")
	}
}

// UpdateSchedule changes the schedule of the monitor
func (m *TATMonitor) UpdateSchedule(schedule string) error {
	id, err := m.cronScheduler.AddFunc(schedule, func() {
		m.runCheck("scheduled")
	})
	if err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	m.cronScheduler.Remove(m.jobID)
	m.jobID = id
	m.schedule = schedule

	log.Printf("TAT monitor schedule updated to: %s\n", schedule)
	return nil
}

// RunManualCheck runs one check now and returns the newly flagged breaches
func (m *TATMonitor) RunManualCheck() ([]Models.TATBreach, error) {
	return m.runCheck("manual")
}

// runCheck never overlaps with itself. A failed notification is logged and
// does not undo the flags.
func (m *TATMonitor) runCheck(trigger string) ([]Models.TATBreach, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	breaches, err := m.flagger.FlagBreaches(ctx)
	if len(breaches) > 0 {
		log.Printf("%s TAT check flagged %d breached calls", trigger, len(breaches))
		for _, n := range m.notifiers {
			if nerr := n.NotifyBreaches(ctx, breaches); nerr != nil {
				log.Printf("Error sending TAT breach alert: %v\n", nerr)
			}
		}
	}
	if err != nil {
		log.Printf("Error in %s TAT check: %v\n", trigger, err)
		return breaches, err
	}
	return breaches, nil
}
