package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"jobagent.local/internal/compose"
	"jobagent.local/internal/domain"
	"jobagent.local/internal/scraper"
)

// mockRepo implements domain.JobRepository for testing.
type mockRepo struct {
	jobs   map[int64]*domain.Job
	order  []int64
	apps   []domain.Application
	due    []domain.FollowUp
	nextID int64

	insertErr error
	recordErr error
	flagErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{jobs: make(map[int64]*domain.Job), nextID: 1}
}

func (m *mockRepo) addJob(emails ...string) *domain.Job {
	job := &domain.Job{
		ID:      m.nextID,
		Company: "Acme",
		Title:   "Data Engineer",
		URL:     "https://example.com/job/" + string(rune('a'+m.nextID)),
		Status:  domain.StatusNew,
		Emails:  emails,
	}
	m.jobs[m.nextID] = job
	m.order = append(m.order, m.nextID)
	m.nextID++
	return job
}

func (m *mockRepo) InsertJob(ctx context.Context, job *domain.Job) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, existing := range m.jobs {
		if existing.URL == job.URL {
			return false, nil
		}
	}
	job.ID = m.nextID
	job.Status = domain.StatusNew
	copy := *job
	m.jobs[m.nextID] = &copy
	m.order = append(m.order, m.nextID)
	m.nextID++
	return true, nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*domain.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copy := *job
	return &copy, nil
}

func (m *mockRepo) AllJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	for _, id := range m.order {
		jobs = append(jobs, *m.jobs[id])
	}
	return jobs, nil
}

func (m *mockRepo) AllApplications(ctx context.Context) ([]domain.Application, error) {
	return append([]domain.Application(nil), m.apps...), nil
}

func (m *mockRepo) RecordApplication(ctx context.Context, jobID int64, email string, status domain.ApplicationStatus) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.apps = append(m.apps, domain.Application{
		JobID:  jobID,
		Email:  email,
		Status: status,
		SentAt: time.Now(),
	})
	if job, ok := m.jobs[jobID]; ok {
		job.Status = domain.StatusApplied
	}
	return nil
}

func (m *mockRepo) SetFollowUpSent(ctx context.Context, jobID int64, email string) error {
	if m.flagErr != nil {
		return m.flagErr
	}
	for i := range m.apps {
		if m.apps[i].JobID == jobID && m.apps[i].Email == email {
			m.apps[i].FollowUpSent = true
			return nil
		}
	}
	return domain.ErrJobNotFound
}

func (m *mockRepo) DueFollowUps(ctx context.Context, thresholdDays int) ([]domain.FollowUp, error) {
	return m.due, nil
}

func (m *mockRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	return &domain.Stats{}, nil
}

type sentMsg struct {
	To      string
	Subject string
	Body    string
}

// mockTransport implements domain.Transport for testing.
type mockTransport struct {
	sent    []sentMsg
	failFor map[string]bool
	panicOn string
}

func (m *mockTransport) Send(ctx context.Context, to, subject, body string) error {
	if m.panicOn == to {
		panic("transport exploded")
	}
	if m.failFor[to] {
		return errors.New("connection refused")
	}
	m.sent = append(m.sent, sentMsg{to, subject, body})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(repo *mockRepo, tr *mockTransport, opts Options) *Scheduler {
	s := New(repo, tr, scraper.NewRegistry(), opts, testLogger())
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func TestRun_DispatchSuccess(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("hr@acme.com")
	repo.addJob("hr@acme.com")
	tr := &mockTransport{}

	s := newScheduler(repo, tr, Options{Profile: compose.Profile{Name: "Jane"}})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(tr.sent) != 1 {
		t.Fatalf("sent %d emails, want 1 consolidated", len(tr.sent))
	}
	if tr.sent[0].To != "hr@acme.com" {
		t.Errorf("To = %q", tr.sent[0].To)
	}
	if report.EmailsSent != 1 || report.ApplicationsSent != 2 {
		t.Errorf("report = %+v, want 1 email / 2 applications", report)
	}
	if len(repo.apps) != 2 {
		t.Fatalf("recorded %d applications, want 2", len(repo.apps))
	}
	for _, app := range repo.apps {
		if app.Email != "hr@acme.com" || app.Status != domain.StatusSent {
			t.Errorf("application = %+v", app)
		}
		if repo.jobs[app.JobID].Status != domain.StatusApplied {
			t.Errorf("job %d status = %q, want applied", app.JobID, repo.jobs[app.JobID].Status)
		}
	}
}

func TestRun_TransportFailureRecordsNothing(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("down@acme.com")
	repo.addJob("up@globex.com")
	tr := &mockTransport{failFor: map[string]bool{"down@acme.com": true}}

	s := newScheduler(repo, tr, Options{})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.UnitsFailed != 1 || report.EmailsSent != 1 {
		t.Errorf("report = %+v, want 1 failed / 1 sent", report)
	}
	if len(repo.apps) != 1 || repo.apps[0].Email != "up@globex.com" {
		t.Errorf("applications = %+v, failed unit must record nothing", repo.apps)
	}
	if repo.jobs[1].Status != domain.StatusNew {
		t.Errorf("job 1 status = %q, want new (eligible for retry next run)", repo.jobs[1].Status)
	}
}

func TestRun_CapDefersWholeBundles(t *testing.T) {
	repo := newMockRepo()
	// Unit 1: three jobs, unit 2: two jobs, unit 3: one job.
	repo.addJob("big@acme.com")
	repo.addJob("big@acme.com")
	repo.addJob("big@acme.com")
	repo.addJob("mid@globex.com")
	repo.addJob("mid@globex.com")
	repo.addJob("small@initech.com")
	tr := &mockTransport{}

	s := newScheduler(repo, tr, Options{MaxApplicationsPerDay: 2})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Cap of 2 jobs: the 3-job bundle cannot fit and is deferred whole, the
	// 2-job bundle fits exactly, the 1-job bundle is then over budget.
	if len(tr.sent) != 1 || tr.sent[0].To != "mid@globex.com" {
		t.Fatalf("sent = %+v, want only mid@globex.com", tr.sent)
	}
	if report.ApplicationsSent != 2 || report.UnitsDeferred != 2 {
		t.Errorf("report = %+v, want 2 applications / 2 deferred", report)
	}
	for _, id := range []int64{1, 2, 3, 6} {
		if repo.jobs[id].Status != domain.StatusNew {
			t.Errorf("deferred job %d was touched: %q", id, repo.jobs[id].Status)
		}
	}
}

func TestRun_SkipsAlreadyAppliedPairs(t *testing.T) {
	repo := newMockRepo()
	job := repo.addJob("hr@acme.com")
	repo.apps = append(repo.apps, domain.Application{
		JobID: job.ID, Email: "hr@acme.com", Status: domain.StatusSent, SentAt: time.Now(),
	})
	tr := &mockTransport{}

	s := newScheduler(repo, tr, Options{})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(tr.sent) != 0 || report.EmailsSent != 0 {
		t.Errorf("re-targeted an already-applied pair: %+v", tr.sent)
	}
}

func TestDispatch_UnresolvableJobsDropped(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("hr@acme.com")
	tr := &mockTransport{}
	s := newScheduler(repo, tr, Options{})

	report := &Report{}
	units := []domain.OutreachUnit{
		{Email: "ghost@acme.com", JobIDs: []int64{99}}, // nothing resolves, skipped
		{Email: "hr@acme.com", JobIDs: []int64{1, 42}}, // 42 dropped, 1 survives
	}
	s.dispatch(context.Background(), units, report)

	if len(tr.sent) != 1 || tr.sent[0].To != "hr@acme.com" {
		t.Fatalf("sent = %+v", tr.sent)
	}
	if report.ApplicationsSent != 1 {
		t.Errorf("ApplicationsSent = %d, want 1", report.ApplicationsSent)
	}
}

func TestDispatch_DelayBetweenUnits(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("a@x.com")
	repo.addJob("b@x.com")
	repo.addJob("c@x.com")
	tr := &mockTransport{}

	s := New(repo, tr, scraper.NewRegistry(), Options{DispatchDelay: time.Minute}, testLogger())
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	report := &Report{}
	units := domain.Consolidate(mustJobs(repo), nil)
	s.dispatch(context.Background(), units, report)

	// Delay between successive dispatches, not before the first.
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	for _, d := range slept {
		if d != time.Minute {
			t.Errorf("slept %v, want 1m", d)
		}
	}
}

func mustJobs(m *mockRepo) []domain.Job {
	jobs, _ := m.AllJobs(context.Background())
	return jobs
}

func TestDispatch_PanicIsolatedPerUnit(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("boom@acme.com")
	repo.addJob("ok@globex.com")
	tr := &mockTransport{panicOn: "boom@acme.com"}

	s := newScheduler(repo, tr, Options{})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.UnitsFailed != 1 || report.EmailsSent != 1 {
		t.Errorf("report = %+v, want panicking unit isolated", report)
	}
	if len(tr.sent) != 1 || tr.sent[0].To != "ok@globex.com" {
		t.Errorf("sent = %+v", tr.sent)
	}
}

func TestFollowUps_SendAndFlag(t *testing.T) {
	repo := newMockRepo()
	job := repo.addJob("hr@acme.com")
	app := domain.Application{JobID: job.ID, Email: "hr@acme.com", Status: domain.StatusSent,
		SentAt: time.Now().AddDate(0, 0, -8)}
	repo.apps = append(repo.apps, app)
	repo.due = []domain.FollowUp{{Application: app, Job: *job}}
	tr := &mockTransport{}

	s := newScheduler(repo, tr, Options{Profile: compose.Profile{Name: "Jane"}, FollowUpDays: 7})

	report := &Report{}
	s.followUps(context.Background(), report)

	if report.FollowUpsSent != 1 {
		t.Fatalf("report = %+v, want 1 follow-up", report)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent = %+v", tr.sent)
	}
	if want := "Following up on Data Engineer application - Jane"; tr.sent[0].Subject != want {
		t.Errorf("Subject = %q, want %q", tr.sent[0].Subject, want)
	}
	if !repo.apps[0].FollowUpSent {
		t.Error("FollowUpSent flag not set after successful follow-up")
	}
}

func TestFollowUps_FailureLeavesFlagUnset(t *testing.T) {
	repo := newMockRepo()
	job := repo.addJob("hr@acme.com")
	app := domain.Application{JobID: job.ID, Email: "hr@acme.com", Status: domain.StatusSent,
		SentAt: time.Now().AddDate(0, 0, -8)}
	repo.apps = append(repo.apps, app)
	repo.due = []domain.FollowUp{{Application: app, Job: *job}}
	tr := &mockTransport{failFor: map[string]bool{"hr@acme.com": true}}

	s := newScheduler(repo, tr, Options{FollowUpDays: 7})

	report := &Report{}
	s.followUps(context.Background(), report)

	if report.FollowUpsFailed != 1 || report.FollowUpsSent != 0 {
		t.Errorf("report = %+v", report)
	}
	if repo.apps[0].FollowUpSent {
		t.Error("FollowUpSent flag set despite transport failure")
	}
}

func TestRun_Cancellation(t *testing.T) {
	repo := newMockRepo()
	repo.addJob("a@x.com")
	repo.addJob("b@x.com")
	tr := &mockTransport{}

	s := newScheduler(repo, tr, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("sent = %+v, want nothing after cancellation", tr.sent)
	}
}

// mockScraper implements domain.Scraper for search phase tests.
type mockScraper struct {
	name string
	jobs []domain.Job
	err  error
}

func (m *mockScraper) Name() string { return m.name }
func (m *mockScraper) Scrape(ctx context.Context, title, location string) ([]domain.Job, error) {
	return m.jobs, m.err
}

func TestSearch_InsertsAndFilters(t *testing.T) {
	repo := newMockRepo()
	tr := &mockTransport{}

	reg := scraper.NewRegistry()
	reg.Register(&mockScraper{name: "boardA", jobs: []domain.Job{
		{Company: "Acme", Title: "DE", URL: "https://a/1", Emails: []string{"hr@acme.com"}},
		{Company: "BadCorp", Title: "DE", URL: "https://a/2"},
		{Company: "Acme", Title: "DE", URL: "https://a/1"}, // duplicate URL
	}})
	reg.Register(&mockScraper{name: "boardB", err: errors.New("rate limited")})

	s := New(repo, tr, reg, Options{
		JobTitles:            []string{"Data Engineer"},
		Locations:            []string{"Remote"},
		BlacklistedCompanies: []string{"badcorp"},
	}, testLogger())
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	report := &Report{}
	s.search(context.Background(), report)

	if report.JobsFound != 1 {
		t.Errorf("JobsFound = %d, want 1 (dedup + blacklist + scraper failure tolerated)", report.JobsFound)
	}
}
