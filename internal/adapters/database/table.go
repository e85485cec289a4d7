package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

const pqUniqueViolation = "23505"

// Table is a goqu-backed implementation of repositories.Store for a
// struct with db tags. Entity adapters embed it and add their own queries.
type Table[T any] struct {
	client  *postgres.Client
	db      *goqu.Database
	name    string
	label   string
	idOf    func(*T) string
	metrics *observability.Metrics
}

// NewTable creates a table store. label names the entity in error messages.
func NewTable[T any](client *postgres.Client, name, label string, idOf func(*T) string, metrics *observability.Metrics) *Table[T] {
	return &Table[T]{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		name:    name,
		label:   label,
		idOf:    idOf,
		metrics: metrics,
	}
}

// Create inserts entity
func (t *Table[T]) Create(ctx context.Context, entity *T) error {
	defer t.observe(ctx, "insert", time.Now())

	query, args, err := t.db.Insert(t.name).Rows(entity).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := t.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrorTypeConflict, fmt.Sprintf("%s already exists", t.label), err)
		}
		return apperrors.NewInternalError(fmt.Sprintf("failed to create %s", t.label), err)
	}
	return nil
}

// GetByID retrieves an entity by ID
func (t *Table[T]) GetByID(ctx context.Context, id string) (*T, error) {
	defer t.observe(ctx, "select", time.Now())

	var out T
	found, err := t.db.From(t.name).Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &out)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to get %s", t.label), err)
	}
	if !found {
		return nil, t.notFound(id)
	}
	return &out, nil
}

// Update replaces every updatable column of entity
func (t *Table[T]) Update(ctx context.Context, entity *T) error {
	defer t.observe(ctx, "update", time.Now())

	id := t.idOf(entity)
	query, args, err := t.db.Update(t.name).Set(entity).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := t.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrorTypeConflict, fmt.Sprintf("%s conflicts with an existing row", t.label), err)
		}
		return apperrors.NewInternalError(fmt.Sprintf("failed to update %s", t.label), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return t.notFound(id)
	}
	return nil
}

// Delete removes an entity by ID
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	defer t.observe(ctx, "delete", time.Now())

	query, args, err := t.db.Delete(t.name).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := t.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to delete %s", t.label), err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return t.notFound(id)
	}
	return nil
}

// selectAll scans every row of ds into entities
func (t *Table[T]) selectAll(ctx context.Context, ds *goqu.SelectDataset) ([]*T, error) {
	defer t.observe(ctx, "select", time.Now())

	var rows []T
	if err := ds.ScanStructsContext(ctx, &rows); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to list %s", t.label), err)
	}

	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (t *Table[T]) from() *goqu.SelectDataset {
	return t.db.From(t.name)
}

func (t *Table[T]) notFound(id string) error {
	return apperrors.Wrap(apperrors.ErrorTypeNotFound, fmt.Sprintf("%s with id %s not found", t.label, id), entities.ErrNotFound)
}

func (t *Table[T]) observe(ctx context.Context, op string, start time.Time) {
	observability.RecordDBMetric(ctx, t.metrics, t.name+"."+op, time.Since(start))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
