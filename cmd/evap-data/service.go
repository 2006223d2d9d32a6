package main

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evapdev/evap/modules/evaluation/importer"
	"github.com/evapdev/evap/modules/evaluation/infrastructure/persistence"
	"github.com/evapdev/evap/modules/evaluation/services"
	"github.com/evapdev/evap/pkg/composables"
	"github.com/evapdev/evap/pkg/configuration"
	"github.com/evapdev/evap/pkg/eventbus"
	"github.com/evapdev/evap/pkg/mailer"
)

// cliEnv bundles everything a command needs: the service, a context with the
// database pool attached, and the pool itself for shutdown.
type cliEnv struct {
	service *services.ImportService
	pool    *pgxpool.Pool
}

func (e *cliEnv) Close() {
	e.pool.Close()
}

// resolveSemester parses the --semester flag, falling back to the active
// semester when the flag was left empty.
func (e *cliEnv) resolveSemester(ctx context.Context, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		active, err := e.service.ActiveSemester(ctx)
		if err != nil {
			return uuid.Nil, withCode(exitValidation, fmt.Errorf("resolve active semester: %w", err))
		}
		return active.ID(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --semester: %w", err))
	}
	return id, nil
}

func newCliEnv(ctx context.Context) (*cliEnv, context.Context, error) {
	conf := configuration.Use()

	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		return nil, nil, withCode(exitDB, fmt.Errorf("connect to database: %w", err))
	}
	ctx = composables.WithPool(ctx, pool)

	bus := eventbus.NewEventPublisher(conf.Logger())
	userRepo := persistence.NewPgUserRepository()

	svc := services.NewImportService(
		persistence.NewPgSemesterRepository(),
		userRepo,
		persistence.NewPgTaxonomyRepository(),
		persistence.NewPgCourseRepository(),
		persistence.NewPgEvaluationRepository(),
		bus,
		importConfig(conf),
	)

	handler := services.NewCMSMailHandler(userRepo, newMailService(conf), conf.Logger())
	handler.Register(bus)

	return &cliEnv{service: svc, pool: pool}, ctx, nil
}

func importConfig(conf *configuration.Configuration) services.ImportConfig {
	return services.ImportConfig{
		Debug:          conf.Debug,
		MaxEnrollments: conf.Importer.MaxEnrollments,
		CMS: importer.CMSOptions{
			IgnoreUsers:            conf.Importer.IgnoreUsers,
			NonResponsibleUsers:    conf.Importer.NonResponsibleUsers,
			IgnorePrograms:         conf.Importer.IgnorePrograms,
			MainEvaluationWeight:   conf.Importer.MainEvaluationDefaultWeight,
			ExamEvaluationWeight:   conf.Importer.ExamEvaluationDefaultWeight,
			ExamEvaluationDuration: conf.Importer.ExamEvaluationDefaultDuration,
		},
	}
}

func newMailService(conf *configuration.Configuration) mailer.EmailService {
	from := mail.Address{Name: conf.Mail.FromName, Address: conf.Mail.FromAddress}
	if conf.Mail.Backend == "sendgrid" {
		return mailer.NewSendgridService(conf.Mail.SendgridAPIKey, from, conf.Mail.SubjectPrefix, conf.Logger())
	}
	return mailer.NewConsoleService(from, conf.Mail.SubjectPrefix, conf.Logger())
}

func readInputFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("read input file: %w", err))
	}
	return data, nil
}
