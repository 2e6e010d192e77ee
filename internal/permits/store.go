// Package permits reads and writes the mobile food facility permit table.
package permits

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

const upsertBatch = 500

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ByStatuses returns every permit whose status is in statuses.
// An empty filter matches nothing.
func (s *Store) ByStatuses(ctx context.Context, statuses []string) ([]model.Permit, error) {
	if len(statuses) == 0 {
		return []model.Permit{}, nil
	}
	var out []model.Permit
	err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("locationid").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("permits by status: %w", err)
	}
	return out, nil
}

// SearchApplicant matches applicant (and address when non-empty) as
// case-insensitive substrings.
func (s *Store) SearchApplicant(ctx context.Context, q model.ApplicantQuery, limit int) ([]model.Permit, error) {
	if len(q.Statuses) == 0 {
		return []model.Permit{}, nil
	}
	tx := s.db.WithContext(ctx).
		Where("LOWER(applicant) LIKE ?", contains(q.Applicant)).
		Where("status IN ?", []string(q.Statuses))
	if q.Address != "" {
		tx = tx.Where("LOWER(address) LIKE ?", contains(q.Address))
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var out []model.Permit
	if err := tx.Order("locationid").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("search applicant: %w", err)
	}
	return out, nil
}

// Upsert inserts permits, replacing rows that share a locationid.
func (s *Store) Upsert(ctx context.Context, ps []model.Permit) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "locationid"}},
			UpdateAll: true,
		}).
		CreateInBatches(ps, upsertBatch)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert permits: %w", res.Error)
	}
	return len(ps), nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Permit{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count permits: %w", err)
	}
	return n, nil
}

func contains(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
