package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jobagent.local/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    source        TEXT NOT NULL DEFAULT '',
    company       TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL UNIQUE,
    emails        TEXT NOT NULL DEFAULT '[]',
    discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    status        TEXT NOT NULL DEFAULT 'new'
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE TABLE IF NOT EXISTS applications (
    job_id         INTEGER NOT NULL REFERENCES jobs(id),
    email          TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'sent',
    sent_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
    follow_up_sent INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (job_id, email)
);
`

// Repository implements domain.JobRepository using SQLite. SQLite commits
// each mutation to disk before returning, so a crash between two dispatches
// loses at most the in-flight unit.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, initializing the schema if needed.
// An unreadable or corrupt database is an error; callers must treat it as
// fatal rather than silently starting with an empty store.
func New(dbPath string) (*Repository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store unreadable at %s: %w", dbPath, err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertJob stores a job unless one with the same URL exists. Returns false
// for a duplicate. On success the assigned ID, discovery time, and status are
// written back to job.
func (r *Repository) InsertJob(ctx context.Context, job *domain.Job) (bool, error) {
	emails, err := json.Marshal(emptyNotNil(job.Emails))
	if err != nil {
		return false, err
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (source, company, title, location, description, url, emails, discovered_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		job.Source, job.Company, job.Title, job.Location, job.Description,
		job.URL, string(emails), now, domain.StatusNew,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, err
	}
	job.ID = id
	job.DiscoveredAt = now
	job.Status = domain.StatusNew
	return true, nil
}

const jobColumns = `id, source, company, title, location, description, url, emails, discovered_at, status`

// Get retrieves a job by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id,
	)
	return scanJob(row)
}

// AllJobs returns every job in insertion order.
func (r *Repository) AllJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// AllApplications returns every application record.
func (r *Repository) AllApplications(ctx context.Context) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, email, status, sent_at, follow_up_sent
		 FROM applications ORDER BY sent_at ASC, job_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// RecordApplication inserts a sent application and flips the job to applied
// in a single transaction.
func (r *Repository) RecordApplication(ctx context.Context, jobID int64, email string, status domain.ApplicationStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO applications (job_id, email, status, sent_at, follow_up_sent)
		 VALUES (?, ?, ?, ?, 0)`,
		jobID, email, status, time.Now(),
	); err != nil {
		return fmt.Errorf("record application job %d to %s: %w", jobID, email, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`,
		domain.StatusApplied, jobID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// SetFollowUpSent marks the follow-up for a (job, email) pair as sent.
func (r *Repository) SetFollowUpSent(ctx context.Context, jobID int64, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET follow_up_sent = 1 WHERE job_id = ? AND email = ?`,
		jobID, email,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// DueFollowUps returns sent applications without a follow-up whose send date
// is at least thresholdDays calendar days in the past, each paired with its
// job.
func (r *Repository) DueFollowUps(ctx context.Context, thresholdDays int) ([]domain.FollowUp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.job_id, a.email, a.status, a.sent_at, a.follow_up_sent,
		        j.id, j.source, j.company, j.title, j.location, j.description, j.url, j.emails, j.discovered_at, j.status
		 FROM applications a JOIN jobs j ON j.id = a.job_id
		 WHERE a.status = ? AND a.follow_up_sent = 0
		 ORDER BY a.sent_at ASC`,
		domain.StatusSent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var due []domain.FollowUp
	for rows.Next() {
		var app domain.Application
		var job domain.Job
		var appStatus, jobStatus, emails string
		if err := rows.Scan(
			&app.JobID, &app.Email, &appStatus, &app.SentAt, &app.FollowUpSent,
			&job.ID, &job.Source, &job.Company, &job.Title, &job.Location,
			&job.Description, &job.URL, &emails, &job.DiscoveredAt, &jobStatus,
		); err != nil {
			return nil, err
		}
		app.Status = domain.ApplicationStatus(appStatus)
		job.Status = domain.JobStatus(jobStatus)
		if err := json.Unmarshal([]byte(emails), &job.Emails); err != nil {
			return nil, fmt.Errorf("job %d has corrupt email list: %w", job.ID, err)
		}
		if domain.DaysBetween(app.SentAt, now) >= thresholdDays {
			due = append(due, domain.FollowUp{Application: app, Job: job})
		}
	}
	return due, rows.Err()
}

// Stats summarizes jobs and applications for the run report.
func (r *Repository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{AppliedBySource: make(map[string]int)}

	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		 FROM jobs`,
		domain.StatusNew, domain.StatusApplied,
	)
	if err := row.Scan(&stats.TotalJobs, &stats.NewJobs, &stats.AppliedJobs); err != nil {
		return nil, err
	}

	row = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(follow_up_sent), 0) FROM applications`,
	)
	if err := row.Scan(&stats.TotalApplications, &stats.FollowUpsSent); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM jobs WHERE status = ? GROUP BY source`,
		domain.StatusApplied,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		if source == "" {
			source = "unknown"
		}
		stats.AppliedBySource[source] = count
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status, emails string
	err := row.Scan(&job.ID, &job.Source, &job.Company, &job.Title, &job.Location,
		&job.Description, &job.URL, &emails, &job.DiscoveredAt, &status)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(emails), &job.Emails); err != nil {
		return nil, fmt.Errorf("job %d has corrupt email list: %w", job.ID, err)
	}
	return &job, nil
}

func scanApplication(row scanner) (*domain.Application, error) {
	var app domain.Application
	var status string
	if err := row.Scan(&app.JobID, &app.Email, &status, &app.SentAt, &app.FollowUpSent); err != nil {
		return nil, err
	}
	app.Status = domain.ApplicationStatus(status)
	return &app, nil
}

func emptyNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
