package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/evapdev/evap/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"evap"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type MailOptions struct {
	Backend        string `env:"MAIL_BACKEND" envDefault:"console"` // console or sendgrid
	SendgridAPIKey string `env:"SENDGRID_API_KEY"`
	FromName       string `env:"MAIL_FROM_NAME" envDefault:"EvaP"`
	FromAddress    string `env:"MAIL_FROM_ADDRESS" envDefault:"evap@localhost"`
	SubjectPrefix  string `env:"MAIL_SUBJECT_PREFIX" envDefault:"[EvaP] "`
}

func (m *MailOptions) Validate() error {
	switch m.Backend {
	case "console", "sendgrid":
	default:
		return fmt.Errorf("mail Backend must be 'console' or 'sendgrid', got '%s'", m.Backend)
	}
	if m.Backend == "sendgrid" && m.SendgridAPIKey == "" {
		return fmt.Errorf("mail SendgridAPIKey is required when Backend is 'sendgrid'")
	}
	return nil
}

// ImporterOptions holds every knob the ingestion pipeline recognizes.
type ImporterOptions struct {
	// Threshold for the "too many enrollments" warning per student.
	MaxEnrollments int `env:"IMPORTER_MAX_ENROLLMENTS" envDefault:"7"`

	// Emails that are never imported from the CMS feed.
	IgnoreUsers []string `env:"IMPORTER_IGNORE_USERS" envSeparator:","`
	// Emails that are imported but never made responsible for a course.
	NonResponsibleUsers []string `env:"IMPORTER_NON_RESPONSIBLE_USERS" envSeparator:","`
	// CMS program codes (cprid) that are never attached to a course.
	IgnorePrograms []string `env:"IMPORTER_IGNORE_PROGRAMS" envSeparator:","`

	ExamEvaluationDefaultDuration time.Duration `env:"EXAM_EVALUATION_DEFAULT_DURATION" envDefault:"72h"`
	ExamEvaluationDefaultWeight   int           `env:"EXAM_EVALUATION_DEFAULT_WEIGHT" envDefault:"1"`
	MainEvaluationDefaultWeight   int           `env:"MAIN_EVALUATION_DEFAULT_WEIGHT" envDefault:"9"`

	// Domains whose users log in without a login key. The importer itself
	// only lowercases emails; the predicate is exposed for the UI layer.
	InstitutionEmailDomains []string `env:"INSTITUTION_EMAIL_DOMAINS" envSeparator:"," envDefault:"institution.example.com"`
}

type Configuration struct {
	Database DatabaseOptions
	Mail     MailOptions
	Importer ImporterOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	Debug            bool   `env:"DEBUG" envDefault:"false"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Mail.Validate(); err != nil {
		return fmt.Errorf("mail configuration error: %w", err)
	}
	if c.Importer.MaxEnrollments < 1 {
		return fmt.Errorf("IMPORTER_MAX_ENROLLMENTS must be positive, got %d", c.Importer.MaxEnrollments)
	}
	if c.Importer.MainEvaluationDefaultWeight < 1 {
		return fmt.Errorf("MAIN_EVALUATION_DEFAULT_WEIGHT must be positive, got %d", c.Importer.MainEvaluationDefaultWeight)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
