package repositories

import (
	"context"
	"database/sql"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/platform/obs"
	"errors"
)

// SQLite-backed implementation of the DeliveryRepository port.
type SqliteDeliveryRepository struct{ DB *sql.DB }

func NewSqliteDeliveryRepository(db *sql.DB) *SqliteDeliveryRepository {
	return &SqliteDeliveryRepository{DB: db}
}

// Return deliveries whose package the user sends or receives.
func (s *SqliteDeliveryRepository) FindAllForUser(ctx context.Context, userID string) (_ []domain.Delivery, err error) {
	defer obs.Time(ctx, "sqlite.deliveries.FindAllForUser")(&err)

	if s.DB == nil {
		return nil, errors.New("sqlite delivery repository: DB is nil")
	}
	if userID == "" {
		return nil, errors.New("find deliveries: user id is empty")
	}

	query := `
	SELECT` + deliveryColumns + `
	FROM deliveries d
	JOIN packages p ON p.package_id = d.package_id
	WHERE p.from_user = ? OR p.to_user = ?
	ORDER BY d.delivery_id;
	`
	return queryDeliveries(ctx, s.DB, "find deliveries", query, userID, userID)
}

// SQLite-backed implementation of the PackageRepository port.
type SqlitePackageRepository struct{ DB *sql.DB }

func NewSqlitePackageRepository(db *sql.DB) *SqlitePackageRepository {
	return &SqlitePackageRepository{DB: db}
}

func (s *SqlitePackageRepository) FindAllForUser(ctx context.Context, userID string) (_ []domain.Package, err error) {
	defer obs.Time(ctx, "sqlite.packages.FindAllForUser")(&err)

	if s.DB == nil {
		return nil, errors.New("sqlite package repository: DB is nil")
	}
	if userID == "" {
		return nil, errors.New("find packages: user id is empty")
	}

	query := `
	SELECT` + packageColumns + `
	FROM packages p
	WHERE p.from_user = ? OR p.to_user = ?
	ORDER BY p.package_id;
	`
	return queryPackages(ctx, s.DB, "find packages", query, userID, userID)
}
