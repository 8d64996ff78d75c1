package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRide(r *models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, rider_id, driver_id, origin_lat, origin_lon, dest_lat, dest_lon, vehicle, status, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.RiderID, r.DriverID, r.Origin.Lat, r.Origin.Lon, r.Destination.Lat, r.Destination.Lon, r.Vehicle, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) BookRide(rideID, driverID string) error {
	res, err := p.db.Exec(`UPDATE rides SET driver_id=$1, status='booked', updated_at=$2 WHERE id=$3`, driverID, time.Now(), rideID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateStatus(rideID, status string) error {
	res, err := p.db.Exec(`UPDATE rides SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), rideID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Get(rideID string) (*models.Ride, error) {
	row := p.db.QueryRow(`SELECT id, rider_id, driver_id, origin_lat, origin_lon, dest_lat, dest_lon, vehicle, status, created_at, updated_at FROM rides WHERE id=$1`, rideID)
	var r models.Ride
	var driverID sql.NullString
	err := row.Scan(&r.ID, &r.RiderID, &driverID, &r.Origin.Lat, &r.Origin.Lon, &r.Destination.Lat, &r.Destination.Lon, &r.Vehicle, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.DriverID = driverID.String
	return &r, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }
