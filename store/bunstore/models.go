package bunstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/id"
)

type dlqEntryModel struct {
	bun.BaseModel `bun:"table:courier_dlq"`

	ID         string     `bun:"id,pk"`
	EnvelopeID string     `bun:"envelope_id,notnull"`
	Handler    string     `bun:"handler,notnull"`
	Queue      string     `bun:"queue,notnull"`
	Body       []byte     `bun:"body,notnull,type:bytea"`
	Error      string     `bun:"error,notnull"`
	Attempt    int        `bun:"attempt,notnull"`
	FailedAt   time.Time  `bun:"failed_at,notnull,default:current_timestamp"`
	ReplayedAt *time.Time `bun:"replayed_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toDLQModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:         e.ID.String(),
		EnvelopeID: e.EnvelopeID,
		Handler:    e.Handler,
		Queue:      e.Queue,
		Body:       e.Body,
		Error:      e.Error,
		Attempt:    e.Attempt,
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
		CreatedAt:  e.CreatedAt,
	}
}

func fromDLQModel(m *dlqEntryModel) (*dlq.Entry, error) {
	parsedID, err := id.ParseWithPrefix(m.ID, id.PrefixDLQ)
	if err != nil {
		return nil, fmt.Errorf("courier/bunstore: parse dlq id %q: %w", m.ID, err)
	}
	return &dlq.Entry{
		ID:         parsedID,
		EnvelopeID: m.EnvelopeID,
		Handler:    m.Handler,
		Queue:      m.Queue,
		Body:       m.Body,
		Error:      m.Error,
		Attempt:    m.Attempt,
		FailedAt:   m.FailedAt,
		ReplayedAt: m.ReplayedAt,
		CreatedAt:  m.CreatedAt,
	}, nil
}

// OpenDSN opens a PostgreSQL-backed *bun.DB from a DSN. The caller owns
// the returned DB's lifecycle.
func OpenDSN(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}
