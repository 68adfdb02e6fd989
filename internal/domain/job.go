package domain

import "time"

// JobStatus represents the lifecycle state of a discovered job.
type JobStatus string

const (
	StatusNew     JobStatus = "new"
	StatusApplied JobStatus = "applied"
)

// ApplicationStatus represents the state of one outreach attempt.
type ApplicationStatus string

const (
	// StatusSent is the only status currently recorded. Failed and bounced
	// are reserved for a transport that can report them.
	StatusSent ApplicationStatus = "sent"
)

// Job represents a discovered job posting. Jobs are deduplicated by URL on
// insert, assigned a stable ID, and never deleted.
type Job struct {
	ID           int64
	Source       string
	Company      string
	Title        string
	Location     string
	Description  string
	URL          string
	Emails       []string
	DiscoveredAt time.Time
	Status       JobStatus
}

// Application records one outreach attempt to one recipient for one job.
// (JobID, Email) is the natural key. FollowUpSent is the only field mutated
// after creation, flipped once by the follow-up pass.
type Application struct {
	JobID        int64
	Email        string
	Status       ApplicationStatus
	SentAt       time.Time
	FollowUpSent bool
}

// OutreachUnit groups the jobs destined for one recipient in one run.
// Computed fresh each run, never persisted.
type OutreachUnit struct {
	Email  string
	JobIDs []int64
}

// FollowUp pairs an application due for a follow-up with its job.
type FollowUp struct {
	Application Application
	Job         Job
}

// Stats summarizes the store for the run report.
type Stats struct {
	TotalJobs         int
	NewJobs           int
	AppliedJobs       int
	TotalApplications int
	FollowUpsSent     int
	AppliedBySource   map[string]int
}
