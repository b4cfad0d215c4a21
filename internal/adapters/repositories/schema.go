package repositories

import (
	"database/sql"
	"delivery-tracker/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Dialect selects the placeholder syntax for the shared DDL and seed SQL.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// bind rewrites ? placeholders into $n for Postgres.
func (d Dialect) bind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Initialize the packages and deliveries tables. The DDL is valid for both
// SQLite and Postgres.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createPackagesQuery := `
	CREATE TABLE IF NOT EXISTS packages (
		package_id TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		from_name TEXT NOT NULL DEFAULT '',
		from_address TEXT NOT NULL DEFAULT '',
		from_lon DOUBLE PRECISION NOT NULL,
		from_lat DOUBLE PRECISION NOT NULL,
		to_name TEXT NOT NULL DEFAULT '',
		to_address TEXT NOT NULL DEFAULT '',
		to_lon DOUBLE PRECISION NOT NULL,
		to_lat DOUBLE PRECISION NOT NULL,
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL
	);
	`

	createDeliveriesQuery := `
	CREATE TABLE IF NOT EXISTS deliveries (
		delivery_id TEXT PRIMARY KEY,
		package_id TEXT NOT NULL REFERENCES packages(package_id),
		status TEXT NOT NULL,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION
	);
	`

	createIndexQueries := []string{
		`CREATE INDEX IF NOT EXISTS idx_packages_from_user ON packages(from_user);`,
		`CREATE INDEX IF NOT EXISTS idx_packages_to_user ON packages(to_user);`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_package ON deliveries(package_id);`,
	}

	statements := append([]string{createPackagesQuery, createDeliveriesQuery}, createIndexQueries...)

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type PackageSeed struct {
	PackageID    string    `json:"package_id"`
	Description  string    `json:"description"`
	Weight       float64   `json:"weight"`
	FromName     string    `json:"from_name"`
	FromAddress  string    `json:"from_address"`
	FromLocation []float64 `json:"from_location"`
	ToName       string    `json:"to_name"`
	ToAddress    string    `json:"to_address"`
	ToLocation   []float64 `json:"to_location"`
	FromUser     string    `json:"from_user"`
	ToUser       string    `json:"to_user"`
}

type DeliverySeed struct {
	DeliveryID string    `json:"delivery_id"`
	PackageID  string    `json:"package_id"`
	Status     string    `json:"status"`
	Location   []float64 `json:"location,omitempty"`
}

type Seed struct {
	Packages   []PackageSeed  `json:"packages"`
	Deliveries []DeliverySeed `json:"deliveries"`
}

// Validate checks ids, coordinates, statuses and package references.
func (s Seed) Validate() error {
	pkgIDs := make(map[string]struct{}, len(s.Packages))
	for i, p := range s.Packages {
		if strings.TrimSpace(p.PackageID) == "" {
			return fmt.Errorf("package at index %d: package_id cannot be empty", i+1)
		}
		if _, err := domain.CoordinatesFromList(p.FromLocation); err != nil {
			return fmt.Errorf("package %s from_location: %w", p.PackageID, err)
		}
		if _, err := domain.CoordinatesFromList(p.ToLocation); err != nil {
			return fmt.Errorf("package %s to_location: %w", p.PackageID, err)
		}
		if p.FromUser == "" || p.ToUser == "" {
			return fmt.Errorf("package %s: from_user and to_user are required", p.PackageID)
		}
		pkgIDs[p.PackageID] = struct{}{}
	}

	for i, d := range s.Deliveries {
		if strings.TrimSpace(d.DeliveryID) == "" {
			return fmt.Errorf("delivery at index %d: delivery_id cannot be empty", i+1)
		}
		if _, ok := pkgIDs[d.PackageID]; !ok {
			return fmt.Errorf("delivery %s: unknown package_id %q", d.DeliveryID, d.PackageID)
		}
		if _, err := domain.ParseDeliveryStatus(d.Status); err != nil {
			return fmt.Errorf("delivery %s: %w", d.DeliveryID, err)
		}
		if len(d.Location) > 0 {
			if _, err := domain.CoordinatesFromList(d.Location); err != nil {
				return fmt.Errorf("delivery %s location: %w", d.DeliveryID, err)
			}
		}
	}
	return nil
}

// Populate the database with packages and deliveries from a JSON file.
// Existing rows with the same ids are replaced.
func SeedFromJSON(db *sql.DB, dialect Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}

	return Insert(db, dialect, data)
}

// Insert writes a validated seed in one transaction.
func Insert(db *sql.DB, dialect Dialect, data Seed) error {
	if db == nil {
		return errors.New("seed: DB is nil")
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pkgStmt, err := tx.Prepare(dialect.bind(`
	INSERT INTO packages (
		package_id, description, weight,
		from_name, from_address, from_lon, from_lat,
		to_name, to_address, to_lon, to_lat,
		from_user, to_user
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (package_id) DO UPDATE
	SET description = EXCLUDED.description,
		weight = EXCLUDED.weight,
		from_name = EXCLUDED.from_name,
		from_address = EXCLUDED.from_address,
		from_lon = EXCLUDED.from_lon,
		from_lat = EXCLUDED.from_lat,
		to_name = EXCLUDED.to_name,
		to_address = EXCLUDED.to_address,
		to_lon = EXCLUDED.to_lon,
		to_lat = EXCLUDED.to_lat,
		from_user = EXCLUDED.from_user,
		to_user = EXCLUDED.to_user;
	`))
	if err != nil {
		return fmt.Errorf("seed: prepare package insert: %w", err)
	}
	defer pkgStmt.Close()

	for _, p := range data.Packages {
		if _, err := pkgStmt.Exec(
			p.PackageID, p.Description, p.Weight,
			p.FromName, p.FromAddress, p.FromLocation[0], p.FromLocation[1],
			p.ToName, p.ToAddress, p.ToLocation[0], p.ToLocation[1],
			p.FromUser, p.ToUser,
		); err != nil {
			return fmt.Errorf("seed: insert package_id=%s: %w", p.PackageID, err)
		}
	}

	delStmt, err := tx.Prepare(dialect.bind(`
	INSERT INTO deliveries (delivery_id, package_id, status, lon, lat)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (delivery_id) DO UPDATE
	SET package_id = EXCLUDED.package_id,
		status = EXCLUDED.status,
		lon = EXCLUDED.lon,
		lat = EXCLUDED.lat;
	`))
	if err != nil {
		return fmt.Errorf("seed: prepare delivery insert: %w", err)
	}
	defer delStmt.Close()

	for _, d := range data.Deliveries {
		var lon, lat sql.NullFloat64
		if len(d.Location) >= 2 {
			lon = sql.NullFloat64{Float64: d.Location[0], Valid: true}
			lat = sql.NullFloat64{Float64: d.Location[1], Valid: true}
		}
		if _, err := delStmt.Exec(d.DeliveryID, d.PackageID, d.Status, lon, lat); err != nil {
			return fmt.Errorf("seed: insert delivery_id=%s: %w", d.DeliveryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
