package repositories

import (
	"context"
	"database/sql"
	"delivery-tracker/internal/domain"
	"fmt"
)

const deliveryColumns = `
	d.delivery_id, d.status, d.lon, d.lat,
	p.package_id, p.description, p.weight,
	p.from_name, p.from_address, p.from_lon, p.from_lat,
	p.to_name, p.to_address, p.to_lon, p.to_lat,
	p.from_user, p.to_user
`

const packageColumns = `
	p.package_id, p.description, p.weight,
	p.from_name, p.from_address, p.from_lon, p.from_lat,
	p.to_name, p.to_address, p.to_lon, p.to_lat,
	p.from_user, p.to_user
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner, extra ...any) (domain.Package, error) {
	var p domain.Package
	dest := append(extra,
		&p.ID, &p.Description, &p.Weight,
		&p.FromName, &p.FromAddress, &p.FromLocation.Lon, &p.FromLocation.Lat,
		&p.ToName, &p.ToAddress, &p.ToLocation.Lon, &p.ToLocation.Lat,
		&p.FromUser, &p.ToUser,
	)
	if err := row.Scan(dest...); err != nil {
		return domain.Package{}, err
	}
	return p, nil
}

func queryDeliveries(ctx context.Context, db *sql.DB, op, query string, args ...any) ([]domain.Delivery, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query deliveries table: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.Delivery, 0, 16)
	for rows.Next() {
		var (
			id, status string
			lon, lat   sql.NullFloat64
		)
		pkg, err := scanPackage(rows, &id, &status, &lon, &lat)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}

		st, err := domain.ParseDeliveryStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%s: delivery %s: %w", op, id, err)
		}

		d := domain.Delivery{
			ID:        id,
			PackageID: pkg.ID,
			Package:   pkg,
			Status:    st,
		}
		if lon.Valid && lat.Valid {
			d.Location = domain.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}

	return out, nil
}

func queryPackages(ctx context.Context, db *sql.DB, op, query string, args ...any) ([]domain.Package, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query packages table: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.Package, 0, 16)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}

	return out, nil
}
