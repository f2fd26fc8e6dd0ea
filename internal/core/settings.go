package core

import (
	"context"
	"strings"

	"spoolbook/pkg/domain"
)

// Vocabulary setting keys written by SeedDefaults.
const (
	SettingBrands    = "brands"
	SettingLines     = "lines"
	SettingMaterials = "materials"
	SettingColors    = "colors"
	SettingFinishes  = "finishes"
	SettingAdditives = "additives"
	SettingVendors   = "vendors"
)

func (s *Service) defaultVocabulary() []domain.Setting {
	d := s.defaults
	return []domain.Setting{
		{Key: SettingBrands, Value: []string{"Bambu Lab", "Polymaker", "Prusament", "eSun", "Overture", "Sunlu", d.Brand}},
		{Key: SettingLines, Value: []string{d.Line, "Basic", "Matte", "Pro", "Silk"}},
		{Key: SettingMaterials, Value: []string{"PLA", "PETG", "ABS", "ASA", "TPU", "PA", "PC", d.Material}},
		{Key: SettingColors, Value: []string{"Black", "White", "Grey", "Red", "Blue", "Green", "Yellow", "Orange", "Natural", d.Color}},
		{Key: SettingFinishes, Value: []string{d.Finish, "Matte", "Silk", "Glossy", "Translucent"}},
		{Key: SettingAdditives, Value: []string{d.Additives, "Carbon Fiber", "Glass Fiber", "Glow", "Wood"}},
		{Key: SettingVendors, Value: append([]string(nil), d.Vendors...)},
	}
}

// SeedDefaults writes the default vocabularies for keys that are absent and
// reports how many settings were written. Existing settings are kept.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	written := 0
	err := s.run(ctx, "seed_defaults", []domain.Collection{domain.CollectionSettings}, func(tx domain.Transaction) error {
		written = 0
		for _, setting := range s.defaultVocabulary() {
			if _, ok, err := tx.Read(domain.CollectionSettings, setting.Key); err != nil {
				return err
			} else if ok {
				continue
			}
			if err := domain.Put(tx, domain.CollectionSettings, setting); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	return written, err
}

// GetSetting returns the setting stored under key.
func (s *Service) GetSetting(ctx context.Context, key string) (domain.Setting, bool, error) {
	var (
		setting domain.Setting
		ok      bool
	)
	err := s.view(ctx, "get_setting", []domain.Collection{domain.CollectionSettings}, func(r domain.Reader) error {
		var err error
		setting, ok, err = domain.Get[domain.Setting](r, domain.CollectionSettings, key)
		return err
	})
	return setting, ok, err
}

// PutSetting replaces the value stored under key.
func (s *Service) PutSetting(ctx context.Context, key string, values []string) (domain.Setting, error) {
	setting := domain.Setting{Key: strings.TrimSpace(key), Value: append([]string{}, values...)}
	err := s.run(ctx, "put_setting", []domain.Collection{domain.CollectionSettings}, func(tx domain.Transaction) error {
		if setting.Key == "" {
			return domain.Invalid("key", "is required")
		}
		return domain.Put(tx, domain.CollectionSettings, setting)
	}, "setting", setting.Key)
	if err != nil {
		return domain.Setting{}, err
	}
	return setting, nil
}
