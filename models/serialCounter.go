package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SerialCounter is the single persistent row holding the next unissued serial
// number. It only advances through ReserveSerials, which takes an exclusive
// row lock; it never decreases and numbers are never reused.
type SerialCounter struct {
	ID         int   `gorm:"primary_key" json:"id"`
	NextSerial int64 `gorm:"not null" json:"next_serial"`
}

const serialCounterId = 1

// FormatSerial renders one serial number. The format is cosmetic; uniqueness
// comes from the underlying integer.
func FormatSerial(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// ReserveSerials atomically reserves count serial numbers and returns them
// formatted with the configured prefix. The reservation runs in its own
// write-exclusive transaction: the counter row is read under FOR UPDATE and
// advanced before commit, so concurrent reservations always get disjoint
// ranges. This is the single cross-request synchronization point in the
// system and is deliberately never retried.
func ReserveSerials(ctx context.Context, count int) ([]string, error) {
	if count < 1 {
		return nil, utils.NewValidationError("serial count must be at least 1")
	}

	db := config.GetDB()
	var start int64

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter SerialCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", serialCounterId).
			First(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			counter = SerialCounter{ID: serialCounterId, NextSerial: config.GetStartingSerial()}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		start = counter.NextSerial
		return tx.Model(&SerialCounter{}).
			Where("id = ?", serialCounterId).
			Update("next_serial", start+int64(count)).Error
	})
	if err != nil {
		return nil, utils.NewInternalError("reserve serial numbers", err)
	}

	prefix := config.GetSerialPrefix()
	serials := make([]string, count)
	for i := 0; i < count; i++ {
		serials[i] = FormatSerial(prefix, start+int64(i))
	}
	return serials, nil
}

// PeekSerials returns the next count serial numbers that would be issued,
// without advancing the counter. Lock-free; used for UI preview only.
func PeekSerials(ctx context.Context, count int) ([]string, error) {
	if count < 1 {
		return nil, utils.NewValidationError("serial count must be at least 1")
	}

	db := config.GetDB()
	var counter SerialCounter
	err := db.WithContext(ctx).Where("id = ?", serialCounterId).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter.NextSerial = config.GetStartingSerial()
	} else if err != nil {
		return nil, utils.NewInternalError("peek serial numbers", err)
	}

	prefix := config.GetSerialPrefix()
	serials := make([]string, count)
	for i := 0; i < count; i++ {
		serials[i] = FormatSerial(prefix, counter.NextSerial+int64(i))
	}
	return serials, nil
}

// SetSerialCounter overwrites the counter with an explicit value. This is the
// manual drift-correction escape hatch: a plain write, outside the locked
// reservation path, for operator use only.
func SetSerialCounter(ctx context.Context, value int64) error {
	if value < 1 {
		return utils.NewValidationError("serial counter value must be at least 1")
	}
	db := config.GetDB()
	counter := SerialCounter{ID: serialCounterId, NextSerial: value}
	if err := db.WithContext(ctx).Save(&counter).Error; err != nil {
		return utils.NewInternalError("set serial counter", err)
	}
	return nil
}

// GetNextSerial reports the counter's current value without formatting.
func GetNextSerial(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var counter SerialCounter
	err := db.WithContext(ctx).Where("id = ?", serialCounterId).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return config.GetStartingSerial(), nil
	}
	if err != nil {
		return 0, utils.NewInternalError("get next serial", err)
	}
	return counter.NextSerial, nil
}
