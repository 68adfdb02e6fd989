package domain

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrEmptyBundle = errors.New("empty job bundle")
)

type pairKey struct {
	jobID int64
	email string
}

// Consolidate groups not-yet-contacted jobs by recipient email, producing one
// outreach unit per recipient. Exclusion is tracked per (job, email) pair: a
// recipient who was already contacted for some jobs still receives a unit
// covering the jobs they were not contacted for.
//
// Pure function of its inputs. Units appear in first-seen recipient order and
// job IDs in job-collection order, so output is stable for fixed inputs.
func Consolidate(jobs []Job, applications []Application) []OutreachUnit {
	applied := make(map[pairKey]bool, len(applications))
	for _, app := range applications {
		if app.Status == StatusSent {
			applied[pairKey{app.JobID, app.Email}] = true
		}
	}

	byEmail := make(map[string]int)
	var units []OutreachUnit

	for _, job := range jobs {
		if job.Status != StatusNew || len(job.Emails) == 0 {
			continue
		}
		for _, email := range job.Emails {
			if applied[pairKey{job.ID, email}] {
				continue
			}
			idx, ok := byEmail[email]
			if !ok {
				idx = len(units)
				byEmail[email] = idx
				units = append(units, OutreachUnit{Email: email})
			}
			if !containsID(units[idx].JobIDs, job.ID) {
				units[idx].JobIDs = append(units[idx].JobIDs, job.ID)
			}
		}
	}

	return units
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
