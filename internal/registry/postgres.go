package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/example/paratransit-relay/internal/models"
)

// PostgresRegistry backs the registry with postgres. Schema lives in
// migrations/001_create_routes.sql.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(dsn string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresRegistry{db: db}, nil
}

func (p *PostgresRegistry) Close() error { return p.db.Close() }

const routeColumns = `id, status, student, driver, vehicle, pickup_location, dropoff_location, scheduled_pickup_time, is_active, created_at, updated_at`

func (p *PostgresRegistry) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM routes WHERE id=$1`, id)
	return scanRoute(row)
}

func (p *PostgresRegistry) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(email,''), type FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Type)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PostgresRegistry) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := p.db.QueryRowContext(ctx, `SELECT id, name, capacity FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.Name, &v.Capacity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *PostgresRegistry) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var l models.Location
	err := p.db.QueryRowContext(ctx, `SELECT id, name, latitude, longitude FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *PostgresRegistry) CreateRoute(ctx context.Context, r *models.Route) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO routes(`+routeColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.Status, r.Student, nullable(r.Driver), nullable(r.Vehicle),
		r.PickupLocation, r.DropoffLocation, r.ScheduledPickupTime, r.IsActive, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresRegistry) FindActiveRoute(ctx context.Context, student string, pickupTime time.Time) (*models.Route, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+routeColumns+` FROM routes
		 WHERE student=$1 AND scheduled_pickup_time=$2 AND status NOT IN ($3,$4,$5,$6,$7)
		 LIMIT 1`,
		student, pickupTime,
		models.StatusCompleted, models.StatusMissing,
		models.StatusCancelledByDriver, models.StatusCancelledByStudent, models.StatusCancelledByAdmin)
	return scanRoute(row)
}

// UpdateRoute is the compare-and-swap write: the WHERE clause pins the
// source status, so a concurrent transition loses cleanly with zero
// rows affected.
func (p *PostgresRegistry) UpdateRoute(ctx context.Context, r *models.Route, from ...models.RouteStatus) error {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE routes SET status=$1, driver=$2, vehicle=$3, is_active=$4, updated_at=$5
		 WHERE id=$6 AND status = ANY($7)`,
		r.Status, nullable(r.Driver), nullable(r.Vehicle), r.IsActive, time.Now(), r.ID, pq.Array(statuses))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func scanRoute(row *sql.Row) (*models.Route, error) {
	var r models.Route
	var driver, vehicle sql.NullString
	err := row.Scan(&r.ID, &r.Status, &r.Student, &driver, &vehicle,
		&r.PickupLocation, &r.DropoffLocation, &r.ScheduledPickupTime, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Driver = driver.String
	r.Vehicle = vehicle.String
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
