package export

import (
	"context"
	"fmt"
	"time"

	"github.com/tchayre/logsti/internal/models"
)

// TicketLister supplies the tickets to back up.
type TicketLister interface {
	List(ctx context.Context) ([]models.Ticket, error)
}

// BackupJob snapshots the current month on a schedule. It satisfies
// runner.Task.
type BackupJob struct {
	backup   *Backup
	tickets  TicketLister
	schedule string
	now      func() time.Time
}

// NewBackupJob creates the job. An empty schedule means "55 23 * * *".
func NewBackupJob(backup *Backup, tickets TicketLister, schedule string) *BackupJob {
	if schedule == "" {
		schedule = "55 23 * * *"
	}
	return &BackupJob{backup: backup, tickets: tickets, schedule: schedule, now: time.Now}
}

func (j *BackupJob) Name() string           { return "monthly-backup" }
func (j *BackupJob) Schedule() string       { return j.schedule }
func (j *BackupJob) Timeout() time.Duration { return time.Minute }

// Run snapshots the month containing the current time.
func (j *BackupJob) Run(ctx context.Context) error {
	tickets, err := j.tickets.List(ctx)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	now := j.now().In(j.backup.loc)
	return j.backup.SnapshotBackup(ctx, tickets, int(now.Month()), now.Year())
}
