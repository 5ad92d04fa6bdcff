package store

import (
	"context"
	"encoding/json"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/backmassage/framevault/internal/errors"
)

// Setting returns the value stored under key.
func (s *Store) Setting(ctx context.Context, key string) (AppSetting, bool, error) {
	var a AppSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AppSetting{}, false, nil
	}
	if err != nil {
		return AppSetting{}, false, errors.NewPersistenceError("read setting", err)
	}
	return a, true, nil
}

// PutSetting inserts or replaces a setting after checking that Value
// parses as ValueType.
func (s *Store) PutSetting(ctx context.Context, a AppSetting) error {
	if a.Key == "" {
		return errors.NewValidationError("key", "setting key is required")
	}
	if a.ValueType == "" {
		a.ValueType = TypeString
	}
	if a.Category == "" {
		a.Category = "general"
	}
	if err := checkSettingValue(a); err != nil {
		return err
	}
	a.ModifiedAt = s.now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&a).Error
	return errors.NewPersistenceError("write setting", err)
}

// Settings lists every setting ordered by category and key.
func (s *Store) Settings(ctx context.Context) ([]AppSetting, error) {
	var out []AppSetting
	if err := s.db.WithContext(ctx).Order("category, key").Find(&out).Error; err != nil {
		return nil, errors.NewPersistenceError("list settings", err)
	}
	return out, nil
}

func checkSettingValue(a AppSetting) error {
	var err error
	switch a.ValueType {
	case TypeString:
	case TypeInt:
		_, err = strconv.Atoi(a.Value)
	case TypeBool:
		_, err = strconv.ParseBool(a.Value)
	case TypeJSON:
		if !json.Valid([]byte(a.Value)) {
			err = errors.New("invalid JSON")
		}
	default:
		return errors.NewValidationError("value_type", "expected string, int, bool or json").WithValue(a.ValueType)
	}
	if err != nil {
		return errors.NewValidationError("value", "does not parse as "+a.ValueType).WithValue(a.Value)
	}
	return nil
}
