package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jobagent.local/internal/adapter/smtp"
	"jobagent.local/internal/adapter/sqlite"
	"jobagent.local/internal/compose"
	"jobagent.local/internal/config"
	"jobagent.local/internal/extract"
	"jobagent.local/internal/report"
	"jobagent.local/internal/scheduler"
	"jobagent.local/internal/scraper"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	reportPath := flag.String("report", "agent_statistics.txt", "path for the statistics report")
	flag.Parse()

	// .env supplies the SMTP password without putting it in the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, slog.LevelInfo)
	defer closeLog()

	logger.Info("starting job application agent",
		"database", cfg.DBPath, "simulate", !cfg.Email.SendRealEmails)

	// A corrupt or unreadable store is fatal; we never silently start empty.
	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open job store", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	denylist := cfg.Search.EmailDenylist
	if len(denylist) == 0 {
		denylist = extract.DefaultDenylist
	}
	extractor := extract.New(denylist)

	registry := scraper.NewRegistry()
	client := &http.Client{Timeout: 30 * time.Second}
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		board, err := scraper.NewBoard(src, client, extractor)
		if err != nil {
			logger.Warn("skipping misconfigured source", "source", src.Name, "error", err)
			continue
		}
		registry.Register(board)
	}

	transport := smtp.New(
		cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.From, cfg.Email.Password,
		cfg.Application.CVPath, !cfg.Email.SendRealEmails, logger,
	)

	sched := scheduler.New(repo, transport, registry, scheduler.Options{
		Profile:               profileFromConfig(cfg.Profile),
		MaxApplicationsPerDay: cfg.Application.MaxApplicationsPerDay,
		DispatchDelay:         cfg.Application.Delay(),
		FollowUpDays:          cfg.Application.FollowUpDays,
		JobTitles:             cfg.Search.JobTitles,
		Locations:             cfg.Search.Locations,
		BlacklistedCompanies:  cfg.Search.BlacklistedCompanies,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runReport, err := sched.Run(ctx)
	if err != nil {
		logger.Error("run interrupted", "error", err)
	}
	logger.Info("run complete",
		"jobs_found", runReport.JobsFound,
		"emails_sent", runReport.EmailsSent,
		"applications_sent", runReport.ApplicationsSent,
		"units_deferred", runReport.UnitsDeferred,
		"units_failed", runReport.UnitsFailed,
		"follow_ups_sent", runReport.FollowUpsSent,
		"follow_ups_failed", runReport.FollowUpsFailed,
	)

	// The report runs even after partial failures.
	gen := report.New(repo, logger)
	if err := gen.Save(context.Background(), *reportPath); err != nil {
		logger.Error("failed to save statistics report", "error", err)
	}
	if err := gen.ExportCSV(context.Background(), "jobs.csv", "applications.csv"); err != nil {
		logger.Error("failed to export CSV", "error", err)
	}
}

func profileFromConfig(p config.ProfileConfig) compose.Profile {
	return compose.Profile{
		Name:       p.Name,
		Background: p.Background,
		Skills:     p.Skills,
		Phone:      p.Phone,
		Email:      p.Email,
	}
}
