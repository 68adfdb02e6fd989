// Package report renders run statistics and exports the store to CSV.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"jobagent.local/internal/domain"
)

// Generator produces the agent statistics report from the job store.
type Generator struct {
	repo domain.JobRepository
	log  *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a report generator.
func New(repo domain.JobRepository, logger *slog.Logger) *Generator {
	return &Generator{repo: repo, log: logger, now: time.Now}
}

// Render formats stats as the plain-text report.
func (g *Generator) Render(stats *domain.Stats) string {
	var b strings.Builder

	b.WriteString("Job Application Agent Statistics\n")
	b.WriteString("===============================\n\n")
	b.WriteString("Job Search:\n")
	b.WriteString("-----------\n")
	fmt.Fprintf(&b, "Total Jobs Found: %d\n", stats.TotalJobs)
	fmt.Fprintf(&b, "New Jobs Pending: %d\n", stats.NewJobs)
	fmt.Fprintf(&b, "Applied Jobs: %d\n\n", stats.AppliedJobs)
	b.WriteString("Applications:\n")
	b.WriteString("------------\n")
	fmt.Fprintf(&b, "Total Applications Sent: %d\n", stats.TotalApplications)
	fmt.Fprintf(&b, "Follow-ups Sent: %d\n\n", stats.FollowUpsSent)
	b.WriteString("Applications by Source:\n")
	b.WriteString("---------------------\n")

	sources := make([]string, 0, len(stats.AppliedBySource))
	for source := range stats.AppliedBySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(&b, "%s: %d\n", source, stats.AppliedBySource[source])
	}

	fmt.Fprintf(&b, "\nGenerated on: %s\n", g.now().Format("2006-01-02 15:04:05"))
	return b.String()
}

// Save reads stats from the store, renders the report, and writes it to path.
func (g *Generator) Save(ctx context.Context, path string) error {
	stats, err := g.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	if err := os.WriteFile(path, []byte(g.Render(stats)), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	g.log.Info("statistics report saved", "path", path)
	return nil
}

// ExportCSV writes all jobs and applications to two CSV files.
func (g *Generator) ExportCSV(ctx context.Context, jobsPath, appsPath string) error {
	jobs, err := g.repo.AllJobs(ctx)
	if err != nil {
		return fmt.Errorf("read jobs: %w", err)
	}
	apps, err := g.repo.AllApplications(ctx)
	if err != nil {
		return fmt.Errorf("read applications: %w", err)
	}

	if err := writeCSV(jobsPath, jobRecords(jobs)); err != nil {
		return err
	}
	if err := writeCSV(appsPath, appRecords(apps)); err != nil {
		return err
	}
	g.log.Info("CSV export saved", "jobs", jobsPath, "applications", appsPath)
	return nil
}

func jobRecords(jobs []domain.Job) [][]string {
	records := [][]string{{"id", "source", "company", "title", "location", "url", "emails", "discovered_at", "status"}}
	for _, j := range jobs {
		records = append(records, []string{
			strconv.FormatInt(j.ID, 10), j.Source, j.Company, j.Title, j.Location,
			j.URL, strings.Join(j.Emails, ";"),
			j.DiscoveredAt.Format(time.RFC3339), string(j.Status),
		})
	}
	return records
}

func appRecords(apps []domain.Application) [][]string {
	records := [][]string{{"job_id", "email", "status", "sent_at", "follow_up_sent"}}
	for _, a := range apps {
		records = append(records, []string{
			strconv.FormatInt(a.JobID, 10), a.Email, string(a.Status),
			a.SentAt.Format(time.RFC3339), strconv.FormatBool(a.FollowUpSent),
		})
	}
	return records
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
