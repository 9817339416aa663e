// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file manages the persisted id counter that backs
// entry id allocation.
package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

// NextID advances the named counter and returns the allocated value.
//
// Call it inside the same transaction as the insert the id is for: the
// counter row update commits together with the row, so a restart can skip
// an id (when the transaction rolled back) but can never hand one out twice.
func NextID(db *gorm.DB, name string) (int64, error) {
	var c domain.Counter
	err := db.Where("name = ?", name).First(&c).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c = domain.Counter{Name: name, Value: 1}
		if err := db.Create(&c).Error; err != nil {
			return 0, err
		}
		return c.Value, nil
	case err != nil:
		return 0, err
	}

	c.Value++
	if err := db.Model(&domain.Counter{}).Where("name = ?", name).Update("value", c.Value).Error; err != nil {
		return 0, err
	}
	return c.Value, nil
}

// PeekID returns the last allocated value of the named counter without
// advancing it. A missing counter reads as 0.
func PeekID(db *gorm.DB, name string) (int64, error) {
	var c domain.Counter
	err := db.Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// RestoreID forces the named counter to value, creating the row if absent.
// Used by snapshot import to reproduce the id sequence exactly.
func RestoreID(db *gorm.DB, name string, value int64) error {
	res := db.Model(&domain.Counter{}).Where("name = ?", name).Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Create(&domain.Counter{Name: name, Value: value}).Error
	}
	return nil
}
