package service

import (
	"context"
	"time"

	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
	"temperaturebox/internal/repository"
)

// Authorization registers operators and resolves their bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (models.Operator, error)
}

// Control exposes the user commands of a box plus the diagnostic check.
type Control interface {
	Start(ctx context.Context, box int, basename string) error
	Stop(ctx context.Context, box int) error
	AddStep(ctx context.Context, box int, p StepParams) (models.Step, error)
	ClearProtocol(ctx context.Context, box int) error
	SetConnection(ctx context.Context, box int, conn models.Connection) error
	SetPort(ctx context.Context, box int, port string) error
	SetAddress(ctx context.Context, box int, address int) error
	Check(ctx context.Context, box int) (models.Reading, error)
	Ports(ctx context.Context) ([]string, error)
}

// Monitoring exposes read-only box snapshots.
type Monitoring interface {
	ListBoxes(ctx context.Context) ([]models.BoxSnapshot, error)
	GetBox(ctx context.Context, box int) (models.BoxSnapshot, error)
}

// EventLog exposes the persisted history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.BoxEvent, error)
	Samples(ctx context.Context, f SampleFilter) ([]models.Sample, error)
}

// Events streams StatusChanged to the interactive layer.
type Events interface {
	Subscribe(buffer int) Subscription
	Unsubscribe(id string) error
}

type StepParams struct {
	Temperature   float64 // °C
	DurationHours float64 // negative holds forever
}

// LogFilter selects history entries.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "START", "STEP", "SAMPLE", "DONE", "STOP", "ERROR", "EDIT"
	BoxID *int      // nil means every box
}

// SampleFilter selects the samples of one box.
type SampleFilter struct {
	BoxID int
	From  time.Time
	To    time.Time
}

// Service aggregates everything the HTTP layer needs.
type Service struct {
	Control
	Monitoring
	EventLog
	Events
	Authorization
}

func NewService(repos *repository.Repository, engine *Scheduler, link device.Link, auth AuthConfig) *Service {
	return &Service{
		Control:       NewControlService(engine, link),
		Monitoring:    NewMonitoringService(engine),
		EventLog:      NewEventLogService(repos.EventRepo, repos.SampleRepo),
		Events:        engine.Broker(),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
