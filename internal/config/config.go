package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds application configuration, loaded from a TOML file with
// environment overrides for secrets and paths.
type Config struct {
	DBPath  string `toml:"db_path"`
	LogFile string `toml:"log_file"`

	Email       EmailConfig       `toml:"email"`
	Search      SearchConfig      `toml:"search"`
	Application ApplicationConfig `toml:"application"`
	Profile     ProfileConfig     `toml:"profile"`
	Sources     []SourceConfig    `toml:"sources"`
}

// EmailConfig configures the SMTP transport. The password is never stored in
// the file; it comes from the JOBAGENT_SMTP_PASSWORD environment variable
// (a .env file is honored).
type EmailConfig struct {
	SMTPServer     string `toml:"smtp_server"`
	SMTPPort       int    `toml:"smtp_port"`
	From           string `toml:"from"`
	SendRealEmails bool   `toml:"send_real_emails"`

	Password string `toml:"-"`
}

// SearchConfig configures the optional search phase.
type SearchConfig struct {
	JobTitles            []string `toml:"job_titles"`
	Locations            []string `toml:"locations"`
	BlacklistedCompanies []string `toml:"blacklisted_companies"`
	EmailDenylist        []string `toml:"email_denylist"`
}

// ApplicationConfig configures dispatch limits and follow-up timing.
type ApplicationConfig struct {
	CVPath                string   `toml:"cv_path"`
	FollowUpDays          int      `toml:"follow_up_days"`
	MaxApplicationsPerDay int      `toml:"max_applications_per_day"`
	ApplicationDelay      duration `toml:"application_delay"`
}

// Delay returns the configured inter-dispatch delay.
func (a ApplicationConfig) Delay() time.Duration {
	return a.ApplicationDelay.Duration
}

// ProfileConfig describes the applicant for message composition.
type ProfileConfig struct {
	Name       string   `toml:"name"`
	Background string   `toml:"background"`
	Skills     []string `toml:"skills"`
	Phone      string   `toml:"phone"`
	Email      string   `toml:"email"`
}

// SourceConfig configures one job board feed. The URL is a template with
// {title} and {location} placeholders.
type SourceConfig struct {
	Name    string `toml:"name"`
	URL     string `toml:"url"`
	Enabled bool   `toml:"enabled"`
}

// duration wraps time.Duration for TOML string values like "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultDBPath returns the default database path using XDG_DATA_HOME.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "jobagent", "jobs.db")
}

// Default returns the configuration written when no config file exists.
func Default() *Config {
	return &Config{
		DBPath:  DefaultDBPath(),
		LogFile: "job_agent.log",
		Email: EmailConfig{
			SMTPServer:     "smtp.gmail.com",
			SMTPPort:       587,
			SendRealEmails: false,
		},
		Search: SearchConfig{
			JobTitles: []string{"Data Engineer", "Machine Learning Engineer"},
			Locations: []string{"Remote"},
		},
		Application: ApplicationConfig{
			CVPath:                "",
			FollowUpDays:          7,
			MaxApplicationsPerDay: 10,
			ApplicationDelay:      duration{15 * time.Minute},
		},
		Profile: ProfileConfig{},
	}
}

// Load reads the config file at path, creating it with defaults first if it
// does not exist. Environment variables override secrets and paths:
// JOBAGENT_SMTP_PASSWORD, JOBAGENT_DB, JOBAGENT_LOG_FILE.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Email.Password = os.Getenv("JOBAGENT_SMTP_PASSWORD")
	if db := os.Getenv("JOBAGENT_DB"); db != "" {
		cfg.DBPath = db
	}
	if logFile := os.Getenv("JOBAGENT_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(Default())
}
