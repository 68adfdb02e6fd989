package domain

import "context"

// JobRepository is the driven port for job and application persistence.
// All mutating calls durably persist before returning.
type JobRepository interface {
	// InsertJob stores a job unless one with the same URL exists.
	// Returns false (and no error) for a duplicate.
	InsertJob(ctx context.Context, job *Job) (bool, error)
	Get(ctx context.Context, id int64) (*Job, error)
	AllJobs(ctx context.Context) ([]Job, error)
	AllApplications(ctx context.Context) ([]Application, error)
	// RecordApplication inserts a sent application and flips the job to
	// applied, atomically.
	RecordApplication(ctx context.Context, jobID int64, email string, status ApplicationStatus) error
	SetFollowUpSent(ctx context.Context, jobID int64, email string) error
	// DueFollowUps returns sent applications without a follow-up whose send
	// date is at least thresholdDays calendar days in the past.
	DueFollowUps(ctx context.Context, thresholdDays int) ([]FollowUp, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Transport is the driven port for outbound email delivery.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Scraper is the driven port for job discovery on one platform.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, title, location string) ([]Job, error)
}
