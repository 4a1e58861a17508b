package usage

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const DefaultCounterName = "global_runs"

// GormCounterStore persists the global run counter in the relational
// database. An absent row reads as zero so a fresh deployment starts
// counting from nothing.
type GormCounterStore struct {
	db   *gorm.DB
	name string
}

func NewGormCounterStore(db *gorm.DB, name string) *GormCounterStore {
	if name == "" {
		name = DefaultCounterName
	}
	return &GormCounterStore{db: db, name: name}
}

func (s *GormCounterStore) Total(ctx context.Context) (int64, error) {
	var row Counter
	err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

// Increment is a read-modify-write inside one transaction. The critical
// section is narrow; exact exclusion across deployment instances is not
// guaranteed and the limit is best-effort.
func (s *GormCounterStore) Increment(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Counter
		err := tx.Where("name = ?", s.name).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = Counter{Name: s.name}
		} else if err != nil {
			return err
		}
		row.Total++
		total = row.Total
		return tx.Save(&row).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *GormCounterStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&Counter{}).
		Where("name = ?", s.name).
		Update("total", 0).Error
}
