// Package scheduler orchestrates one agent run: search, consolidate,
// dispatch, follow up. One invocation processes one pass of each phase
// sequentially, then returns.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobagent.local/internal/compose"
	"jobagent.local/internal/domain"
	"jobagent.local/internal/scraper"
)

// Phase is the run state, advanced strictly in order.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSearching     Phase = "searching"
	PhaseConsolidating Phase = "consolidating"
	PhaseDispatching   Phase = "dispatching"
	PhaseFollowingUp   Phase = "following_up"
	PhaseDone          Phase = "done"
)

// Options configures a run.
type Options struct {
	Profile compose.Profile

	// MaxApplicationsPerDay caps dispatched JOBS per run, not emails.
	// Zero or negative means no cap.
	MaxApplicationsPerDay int
	// DispatchDelay is observed between successive dispatches and between
	// successive follow-ups.
	DispatchDelay time.Duration
	FollowUpDays  int

	JobTitles            []string
	Locations            []string
	BlacklistedCompanies []string
}

// Report counts what one run did. Produced even when some units failed.
type Report struct {
	JobsFound        int
	EmailsSent       int
	ApplicationsSent int
	UnitsDeferred    int
	UnitsFailed      int
	FollowUpsSent    int
	FollowUpsFailed  int
}

// Scheduler is the sole writer to the job store during a run.
type Scheduler struct {
	repo      domain.JobRepository
	transport domain.Transport
	scrapers  *scraper.Registry
	opts      Options
	log       *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler. scrapers may be empty; the search phase is then a
// no-op.
func New(repo domain.JobRepository, transport domain.Transport, scrapers *scraper.Registry, opts Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:      repo,
		transport: transport,
		scrapers:  scrapers,
		opts:      opts,
		log:       logger,
		sleep:     sleepCtx,
	}
}

// Run executes one full pass. Phase failures are logged and the run moves on;
// only context cancellation ends it early. The report is always returned.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	s.enter(PhaseSearching)
	s.search(ctx, report)

	s.enter(PhaseConsolidating)
	units := s.consolidate(ctx)

	s.enter(PhaseDispatching)
	s.dispatch(ctx, units, report)

	s.enter(PhaseFollowingUp)
	s.followUps(ctx, report)

	s.enter(PhaseDone)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Scheduler) enter(p Phase) {
	s.log.Info("run phase", "phase", string(p))
}

// search discovers jobs from all registered scrapers. Scraper errors are
// non-fatal; discovered jobs are deduplicated by URL on insert.
func (s *Scheduler) search(ctx context.Context, report *Report) {
	for _, sc := range s.scrapers.All() {
		for _, title := range s.opts.JobTitles {
			for _, location := range s.opts.Locations {
				if ctx.Err() != nil {
					return
				}
				jobs, err := sc.Scrape(ctx, title, location)
				if err != nil {
					s.log.Error("scrape failed", "source", sc.Name(), "title", title, "location", location, "error", err)
					continue
				}
				for _, job := range jobs {
					if s.blacklisted(job.Company) {
						s.log.Info("skipping blacklisted company", "company", job.Company)
						continue
					}
					inserted, err := s.repo.InsertJob(ctx, &job)
					if err != nil {
						s.log.Error("insert job failed", "url", job.URL, "error", err)
						continue
					}
					if inserted {
						report.JobsFound++
					}
				}
			}
		}
	}
	s.log.Info("search complete", "new_jobs", report.JobsFound)
}

func (s *Scheduler) blacklisted(company string) bool {
	for _, b := range s.opts.BlacklistedCompanies {
		if strings.EqualFold(strings.TrimSpace(b), strings.TrimSpace(company)) {
			return true
		}
	}
	return false
}

// consolidate reads a snapshot of the store and groups outstanding jobs by
// recipient. A store read failure skips dispatching entirely.
func (s *Scheduler) consolidate(ctx context.Context) []domain.OutreachUnit {
	jobs, err := s.repo.AllJobs(ctx)
	if err != nil {
		s.log.Error("reading jobs failed, skipping dispatch", "error", err)
		return nil
	}
	apps, err := s.repo.AllApplications(ctx)
	if err != nil {
		s.log.Error("reading applications failed, skipping dispatch", "error", err)
		return nil
	}

	units := domain.Consolidate(jobs, apps)
	s.log.Info("consolidated outreach", "recipients", len(units))
	return units
}

// dispatch sends one consolidated email per unit, within the per-run cap.
// Bundles are atomic: a unit that cannot fit in the remaining budget is
// deferred whole to the next run, never truncated.
func (s *Scheduler) dispatch(ctx context.Context, units []domain.OutreachUnit, report *Report) {
	remaining := s.opts.MaxApplicationsPerDay
	capped := remaining > 0
	dispatched := false

	for _, unit := range units {
		if ctx.Err() != nil {
			return
		}

		bundle := s.resolveBundle(ctx, unit)
		if len(bundle) == 0 {
			s.log.Warn("unit has no resolvable jobs, skipping", "email", unit.Email)
			continue
		}

		if capped && len(bundle) > remaining {
			s.log.Info("unit deferred by daily cap", "email", unit.Email, "jobs", len(bundle), "remaining", remaining)
			report.UnitsDeferred++
			continue
		}

		if dispatched {
			if err := s.sleep(ctx, s.opts.DispatchDelay); err != nil {
				return
			}
		}
		dispatched = true

		sent, err := s.dispatchUnit(ctx, unit.Email, bundle)
		if err != nil {
			s.log.Error("unit failed", "email", unit.Email, "error", err)
			report.UnitsFailed++
			continue
		}

		report.EmailsSent++
		report.ApplicationsSent += sent
		if capped {
			remaining -= sent
		}
	}

	s.log.Info("dispatch complete", "emails", report.EmailsSent, "applications", report.ApplicationsSent,
		"deferred", report.UnitsDeferred, "failed", report.UnitsFailed)
}

// resolveBundle loads job details for a unit, dropping identifiers that no
// longer resolve.
func (s *Scheduler) resolveBundle(ctx context.Context, unit domain.OutreachUnit) []compose.BundleJob {
	var bundle []compose.BundleJob
	for _, id := range unit.JobIDs {
		job, err := s.repo.Get(ctx, id)
		if err != nil {
			s.log.Warn("dropping unresolvable job from bundle", "job", id, "email", unit.Email, "error", err)
			continue
		}
		bundle = append(bundle, compose.BundleJob{ID: job.ID, Company: job.Company, Title: job.Title})
	}
	return bundle
}

// dispatchUnit composes, sends, and records one unit. Returns the number of
// applications recorded. A panic here must not abort the remaining units.
func (s *Scheduler) dispatchUnit(ctx context.Context, email string, bundle []compose.BundleJob) (sent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()

	msg, err := compose.Application(email, bundle, s.opts.Profile)
	if err != nil {
		return 0, err
	}

	if err := s.transport.Send(ctx, email, msg.Subject, msg.Body); err != nil {
		// Nothing is recorded; the unit stays eligible for the next run.
		return 0, err
	}

	// Known gap: a crash between the send above and the records below loses
	// the records, and a later run may re-target this recipient.
	for _, id := range msg.JobIDs {
		if err := s.repo.RecordApplication(ctx, id, email, domain.StatusSent); err != nil {
			s.log.Error("recording application failed", "job", id, "email", email, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// followUps sends one follow-up per due application and flips its one-shot
// flag. Transport failures leave the flag unset for the next run.
func (s *Scheduler) followUps(ctx context.Context, report *Report) {
	due, err := s.repo.DueFollowUps(ctx, s.opts.FollowUpDays)
	if err != nil {
		s.log.Error("reading due follow-ups failed", "error", err)
		return
	}
	s.log.Info("follow-ups due", "count", len(due))

	dispatched := false
	for _, fu := range due {
		if ctx.Err() != nil {
			return
		}
		if dispatched {
			if err := s.sleep(ctx, s.opts.DispatchDelay); err != nil {
				return
			}
		}
		dispatched = true

		if err := s.followUpOne(ctx, fu); err != nil {
			s.log.Error("follow-up failed", "job", fu.Application.JobID, "email", fu.Application.Email, "error", err)
			report.FollowUpsFailed++
			continue
		}
		report.FollowUpsSent++
	}

	s.log.Info("follow-up pass complete", "sent", report.FollowUpsSent, "failed", report.FollowUpsFailed)
}

func (s *Scheduler) followUpOne(ctx context.Context, fu domain.FollowUp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("follow-up panicked: %v", r)
		}
	}()

	msg, err := compose.FollowUp(fu.Job, s.opts.Profile)
	if err != nil {
		return err
	}

	if err := s.transport.Send(ctx, fu.Application.Email, msg.Subject, msg.Body); err != nil {
		return err
	}

	if err := s.repo.SetFollowUpSent(ctx, fu.Application.JobID, fu.Application.Email); err != nil {
		return fmt.Errorf("follow-up sent but not recorded: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
