package repositories

import (
	"context"
	"database/sql"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/platform/obs"
	"errors"
)

// SQLDeliveryRepository reads deliveries from Postgres.
type SQLDeliveryRepository struct{ DB *sql.DB }

func NewSQLDeliveryRepository(db *sql.DB) *SQLDeliveryRepository {
	return &SQLDeliveryRepository{DB: db}
}

func (s *SQLDeliveryRepository) FindAllForUser(ctx context.Context, userID string) (_ []domain.Delivery, err error) {
	defer obs.Time(ctx, "postgres.deliveries.FindAllForUser")(&err)

	if s.DB == nil {
		return nil, errors.New("delivery repository: db is nil")
	}
	if userID == "" {
		return nil, errors.New("find deliveries: user id is empty")
	}

	q := `
	SELECT` + deliveryColumns + `
	FROM deliveries d
	JOIN packages p ON p.package_id = d.package_id
	WHERE $1 IN (p.from_user, p.to_user)
	ORDER BY d.delivery_id;
	`
	return queryDeliveries(ctx, s.DB, "find deliveries", q, userID)
}

// SQLPackageRepository reads packages from Postgres.
type SQLPackageRepository struct{ DB *sql.DB }

func NewSQLPackageRepository(db *sql.DB) *SQLPackageRepository {
	return &SQLPackageRepository{DB: db}
}

func (s *SQLPackageRepository) FindAllForUser(ctx context.Context, userID string) (_ []domain.Package, err error) {
	defer obs.Time(ctx, "postgres.packages.FindAllForUser")(&err)

	if s.DB == nil {
		return nil, errors.New("package repository: db is nil")
	}
	if userID == "" {
		return nil, errors.New("find packages: user id is empty")
	}

	q := `
	SELECT` + packageColumns + `
	FROM packages p
	WHERE $1 IN (p.from_user, p.to_user)
	ORDER BY p.package_id;
	`
	return queryPackages(ctx, s.DB, "find packages", q, userID)
}
