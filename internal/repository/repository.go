package repository

import (
	"context"
	"database/sql"
	"time"

	"temperaturebox/internal/models"
)

// Authorization stores operator credentials.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}

// EventQuery filters box history. Zero times and an empty type mean no bound;
// BoxID < 0 means every box.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	BoxID int
}

type EventRepo interface {
	Append(ctx context.Context, e models.BoxEvent) error
	List(ctx context.Context, q EventQuery) ([]models.BoxEvent, error)
}

type SampleRepo interface {
	Append(ctx context.Context, s models.Sample) error
	List(ctx context.Context, box int, from, to time.Time) ([]models.Sample, error)
}

type Repository struct {
	EventRepo  EventRepo
	SampleRepo SampleRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:  NewEventSQLite(db),
		SampleRepo: NewSampleSQLite(db),
		Auth:       NewOperatorSQLite(db),
	}
}
