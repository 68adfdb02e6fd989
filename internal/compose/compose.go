// Package compose builds outreach message content. Both entry points are
// pure: no I/O, deterministic for identical inputs.
package compose

import (
	"fmt"
	"strings"

	"jobagent.local/internal/domain"
)

// Profile describes the applicant. Zero values fall back to the documented
// defaults at composition time.
type Profile struct {
	Name       string
	Background string
	Skills     []string
	Phone      string
	Email      string
}

const (
	defaultName       = "Job Applicant"
	defaultBackground = "Data Engineering"
	defaultCompany    = "your company"
	maxSkills         = 3
)

var defaultSkills = []string{"Python", "SQL", "Data Pipelines"}

// BundleJob is the slice of a job the composer needs.
type BundleJob struct {
	ID      int64
	Company string
	Title   string
}

// Message is composed content ready for the transport, carrying the job IDs
// covered so the caller can record one application per job after delivery.
type Message struct {
	Subject string
	Body    string
	JobIDs  []int64
}

// Application composes a consolidated application email for one recipient.
// Single-job bundles get a targeted pitch, larger bundles a numbered list.
// The bundle must not be empty.
func Application(email string, bundle []BundleJob, profile Profile) (*Message, error) {
	if email == "" {
		return nil, fmt.Errorf("compose application: %w", domain.ErrEmptyBundle)
	}
	if len(bundle) == 0 {
		return nil, fmt.Errorf("compose application for %s: %w", email, domain.ErrEmptyBundle)
	}

	var subject string
	if len(bundle) == 1 {
		subject = fmt.Sprintf("Application for %s position", bundle[0].Title)
	} else {
		subject = fmt.Sprintf("Multiple Job Applications - %s", profile.name())
	}

	var b strings.Builder
	b.WriteString("Dear Hiring Manager,\n\n")

	if len(bundle) == 1 {
		fmt.Fprintf(&b, "I am writing to express my interest in the %s position at %s.\n",
			bundle[0].Title, orDefault(bundle[0].Company, defaultCompany))
	} else {
		b.WriteString("I am writing to express my interest in the following positions at your company:\n\n")
		for i, job := range bundle {
			fmt.Fprintf(&b, "%d. %s at %s\n", i+1, job.Title, orDefault(job.Company, defaultCompany))
		}
	}

	fmt.Fprintf(&b, "\nI have attached my resume for your consideration. My background in %s and experience with %s align well with the requirements for these positions.\n\n",
		orDefault(profile.Background, defaultBackground), strings.Join(profile.skills(), ", "))
	b.WriteString("Thank you for considering my application. I look forward to discussing how my skills and experience can benefit your team.\n\n")
	writeSignature(&b, profile)

	ids := make([]int64, len(bundle))
	for i, job := range bundle {
		ids[i] = job.ID
	}

	return &Message{Subject: subject, Body: b.String(), JobIDs: ids}, nil
}

// FollowUp composes a follow-up for a single earlier application. Follow-ups
// are never consolidated across jobs.
func FollowUp(job domain.Job, profile Profile) (*Message, error) {
	if job.Title == "" && job.Company == "" {
		return nil, fmt.Errorf("compose follow-up for job %d: missing title and company", job.ID)
	}

	subject := fmt.Sprintf("Following up on %s application - %s", job.Title, profile.name())

	var b strings.Builder
	b.WriteString("Dear Hiring Manager,\n\n")
	fmt.Fprintf(&b, "I hope this email finds you well. I wanted to follow up on my application for the %s position at %s.\n\n",
		job.Title, orDefault(job.Company, defaultCompany))
	b.WriteString("I remain very interested in this opportunity and would appreciate any update you can provide on the status of my application.\n\n")
	b.WriteString("Thank you for your time and consideration.\n\n")
	writeSignature(&b, profile)

	return &Message{Subject: subject, Body: b.String(), JobIDs: []int64{job.ID}}, nil
}

func (p Profile) name() string {
	return orDefault(p.Name, defaultName)
}

func (p Profile) skills() []string {
	skills := p.Skills
	if len(skills) == 0 {
		skills = defaultSkills
	}
	if len(skills) > maxSkills {
		skills = skills[:maxSkills]
	}
	return skills
}

// writeSignature appends the closing block, skipping blank contact lines.
func writeSignature(b *strings.Builder, profile Profile) {
	fmt.Fprintf(b, "Best regards,\n%s\n", profile.name())
	if profile.Phone != "" {
		b.WriteString(profile.Phone + "\n")
	}
	if profile.Email != "" {
		b.WriteString(profile.Email + "\n")
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
