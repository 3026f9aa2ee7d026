package main

import (
	"context"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/persistence"
)

type slotStoreAdapter struct {
	repo persistence.ReservationRepository
}

func newSlotStoreAdapter(repo persistence.ReservationRepository) *slotStoreAdapter {
	return &slotStoreAdapter{repo: repo}
}

func (a *slotStoreAdapter) Query(ctx context.Context, query application.ReservationQuery) ([]application.Reservation, error) {
	models, err := a.repo.QueryReservations(ctx, persistence.ReservationFilter{Date: query.Date, PoolKey: query.PoolKey})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	out := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationReservation(model))
	}
	return out, nil
}

func (a *slotStoreAdapter) Insert(ctx context.Context, rec application.Reservation, limit int) (application.Reservation, error) {
	stored, err := a.repo.InsertReservation(ctx, toPersistenceReservation(rec), limit)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *slotStoreAdapter) CountByDate(ctx context.Context) (map[string]int, error) {
	return a.repo.CountReservationsByDate(ctx)
}

// closedDateRepositoryAdapter calls onChange after every successful write so
// cached blackout snapshots can be dropped.
type closedDateRepositoryAdapter struct {
	repo     persistence.ClosedDateRepository
	onChange func()
}

func newClosedDateRepositoryAdapter(repo persistence.ClosedDateRepository, onChange func()) *closedDateRepositoryAdapter {
	if onChange == nil {
		onChange = func() {}
	}
	return &closedDateRepositoryAdapter{repo: repo, onChange: onChange}
}

func (a *closedDateRepositoryAdapter) ListClosedDates(ctx context.Context) ([]application.ClosedDate, error) {
	models, err := a.repo.ListClosedDates(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	out := make([]application.ClosedDate, 0, len(models))
	for _, model := range models {
		out = append(out, application.ClosedDate{Date: model.Date, Reason: model.Reason, CreatedAt: model.CreatedAt})
	}
	return out, nil
}

func (a *closedDateRepositoryAdapter) AddClosedDate(ctx context.Context, date application.ClosedDate) error {
	if err := a.repo.AddClosedDate(ctx, persistence.ClosedDate{Date: date.Date, Reason: date.Reason, CreatedAt: date.CreatedAt}); err != nil {
		return err
	}
	a.onChange()
	return nil
}

func (a *closedDateRepositoryAdapter) DeleteClosedDate(ctx context.Context, date string) error {
	if err := a.repo.DeleteClosedDate(ctx, date); err != nil {
		return err
	}
	a.onChange()
	return nil
}

func toPersistenceReservation(r application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Date:      r.Date,
		Time:      r.Time,
		PoolKey:   r.PoolKey,
		CreatedAt: r.CreatedAt,
	}
}

func toApplicationReservation(r persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Date:      r.Date,
		Time:      r.Time,
		PoolKey:   r.PoolKey,
		CreatedAt: r.CreatedAt,
	}
}
