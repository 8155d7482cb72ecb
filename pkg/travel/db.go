package travel

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are stored. Always UTC, so string comparison
// orders them chronologically.
const timeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS flights (
	flight_id           INTEGER PRIMARY KEY,
	flight_no           TEXT NOT NULL,
	departure_airport   TEXT NOT NULL,
	arrival_airport     TEXT NOT NULL,
	scheduled_departure TEXT NOT NULL,
	scheduled_arrival   TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'Scheduled',
	aircraft_code       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS tickets (
	ticket_no    TEXT PRIMARY KEY,
	book_ref     TEXT NOT NULL,
	passenger_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_passenger ON tickets(passenger_id);
CREATE TABLE IF NOT EXISTS ticket_flights (
	ticket_no       TEXT NOT NULL,
	flight_id       INTEGER NOT NULL,
	fare_conditions TEXT NOT NULL,
	amount          REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS boarding_passes (
	ticket_no   TEXT NOT NULL,
	flight_id   INTEGER NOT NULL,
	boarding_no INTEGER NOT NULL,
	seat_no     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS hotels (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	location      TEXT NOT NULL,
	price_tier    TEXT NOT NULL,
	checkin_date  TEXT,
	checkout_date TEXT,
	booked        INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS car_rentals (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL,
	price_tier TEXT NOT NULL,
	start_date TEXT,
	end_date   TEXT,
	booked     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS trip_recommendations (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	location TEXT NOT NULL,
	keywords TEXT NOT NULL,
	details  TEXT NOT NULL DEFAULT '',
	booked   INTEGER NOT NULL DEFAULT 0
);
`

// DB is the travel backing store: flights, tickets and bookable inventory.
type DB struct {
	db *sql.DB
}

// Open creates (if needed) and opens the travel database at path.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to ensure database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open travel database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate travel database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Empty reports whether the database holds no flights yet.
func (d *DB) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flights").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count flights: %w", err)
	}
	return n == 0, nil
}

// DemoPassenger is the signed-in passenger of the seeded itinerary.
const DemoPassenger = "3442 587242"

type seedFlight struct {
	id       int
	no       string
	from, to string
	departIn time.Duration
	duration time.Duration
	aircraft string
}

var seedFlights = []seedFlight{
	{1, "LX0112", "CDG", "BSL", 26 * time.Hour, 80 * time.Minute, "A320"},
	{2, "LX0114", "CDG", "BSL", 2 * time.Hour, 80 * time.Minute, "A320"},
	{3, "LX0116", "CDG", "BSL", 50 * time.Hour, 80 * time.Minute, "A320"},
	{4, "LX0118", "CDG", "BSL", 74 * time.Hour, 80 * time.Minute, "A321"},
	{5, "LX0345", "BSL", "ZRH", 30 * time.Hour, 45 * time.Minute, "E190"},
	{6, "LX0402", "ZRH", "LHR", 28 * time.Hour, 100 * time.Minute, "A220"},
	{7, "LX0018", "ZRH", "JFK", 96 * time.Hour, 9 * time.Hour, "A333"},
	{8, "LX0520", "GVA", "CDG", 5 * time.Hour, 70 * time.Minute, "A320"},
}

type seedStmt struct {
	query string
	args  []any
}

// Seed replaces the contents of the database with a small demo dataset.
// Departures are relative to now so the rescheduling rules stay meaningful.
func (d *DB) Seed(ctx context.Context, now time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"flights", "tickets", "ticket_flights", "boarding_passes", "hotels", "car_rentals", "trip_recommendations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	base := now.UTC().Truncate(time.Minute)
	for _, f := range seedFlights {
		dep := base.Add(f.departIn)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flights (flight_id, flight_no, departure_airport, arrival_airport, scheduled_departure, scheduled_arrival, status, aircraft_code)
			 VALUES (?, ?, ?, ?, ?, ?, 'Scheduled', ?)`,
			f.id, f.no, f.from, f.to, dep.Format(timeLayout), dep.Add(f.duration).Format(timeLayout), f.aircraft,
		); err != nil {
			return fmt.Errorf("failed to seed flight %d: %w", f.id, err)
		}
	}

	stmts := []seedStmt{
		{"INSERT INTO tickets VALUES (?, ?, ?)", []any{"7240005432906569", "C46E9F", DemoPassenger}},
		{"INSERT INTO tickets VALUES (?, ?, ?)", []any{"7240005432906570", "C46E9F", DemoPassenger}},
		{"INSERT INTO tickets VALUES (?, ?, ?)", []any{"8100002345678901", "9B2A11", "5102 899977"}},
		{"INSERT INTO ticket_flights VALUES (?, ?, ?, ?)", []any{"7240005432906569", 1, "Economy", 180.0}},
		{"INSERT INTO ticket_flights VALUES (?, ?, ?, ?)", []any{"7240005432906570", 6, "Business", 640.0}},
		{"INSERT INTO ticket_flights VALUES (?, ?, ?, ?)", []any{"8100002345678901", 7, "Economy", 820.0}},
		{"INSERT INTO boarding_passes VALUES (?, ?, ?, ?)", []any{"7240005432906569", 1, 12, "18E"}},
		{"INSERT INTO boarding_passes VALUES (?, ?, ?, ?)", []any{"7240005432906570", 6, 3, "2A"}},
		{"INSERT INTO boarding_passes VALUES (?, ?, ?, ?)", []any{"8100002345678901", 7, 40, "31C"}},
	}

	hotels := [][]any{
		{1, "Hilton Basel", "Basel", "Luxury"},
		{2, "Marriott Zurich", "Zurich", "Upscale"},
		{3, "Hyatt Regency Basel", "Basel", "Upper Upscale"},
		{4, "Radisson Blu Lucerne", "Lucerne", "Midscale"},
		{5, "Best Western Bern", "Bern", "Upper Midscale"},
		{6, "InterContinental Geneva", "Geneva", "Luxury"},
		{7, "Holiday Inn Basel", "Basel", "Upper Midscale"},
	}
	for _, h := range hotels {
		stmts = append(stmts, seedStmt{"INSERT INTO hotels (id, name, location, price_tier) VALUES (?, ?, ?, ?)", h})
	}

	cars := [][]any{
		{1, "Europcar", "Basel", "Economy"},
		{2, "Avis", "Basel", "Luxury"},
		{3, "Hertz", "Zurich", "Midsize"},
		{4, "Sixt", "Bern", "Midsize"},
		{5, "Budget", "Basel", "Compact"},
		{6, "Enterprise", "Geneva", "Economy"},
	}
	for _, c := range cars {
		stmts = append(stmts, seedStmt{"INSERT INTO car_rentals (id, name, location, price_tier) VALUES (?, ?, ?, ?)", c})
	}

	trips := [][]any{
		{1, "Basel Minster", "Basel", "landmark, history", "Guided walk through the cathedral and the Pfalz terrace."},
		{2, "Kunstmuseum Basel", "Basel", "art, museum", "Skip-the-line entry to the permanent collection."},
		{3, "Zurich Old Town", "Zurich", "history, architecture", "Two hour walking tour of the Altstadt."},
		{4, "Lucerne Lake Cruise", "Lucerne", "lake, scenery, boat", "Round trip on a paddle steamer."},
		{5, "Rhine Swim", "Basel", "river, summer, outdoor", "Float down the Rhine with a dry bag."},
	}
	for _, r := range trips {
		stmts = append(stmts, seedStmt{"INSERT INTO trip_recommendations (id, name, location, keywords, details) VALUES (?, ?, ?, ?, ?)", r})
	}

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}
	return tx.Commit()
}
