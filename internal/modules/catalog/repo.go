package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/pkg/redis"
)

// catalogKey holds the whole catalog as one JSON array. The catalog is small
// enough (thousands of records, not millions) that a single-key snapshot
// keeps reads and writes trivially atomic.
const catalogKey = "fs:catalog"

// Repo persists the catalog snapshot.
type Repo interface {
	Load(ctx context.Context) ([]models.SpecRecord, error)
	Save(ctx context.Context, records []models.SpecRecord) error
}

type redisRepo struct {
	client *redis.Client
}

func NewRedisRepo(client *redis.Client) Repo {
	return &redisRepo{client: client}
}

func (r *redisRepo) Load(ctx context.Context) ([]models.SpecRecord, error) {
	raw, err := r.client.Get(ctx, catalogKey)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if raw == "" {
		return []models.SpecRecord{}, nil
	}

	var records []models.SpecRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return records, nil
}

func (r *redisRepo) Save(ctx context.Context, records []models.SpecRecord) error {
	if records == nil {
		records = []models.SpecRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := r.client.Set(ctx, catalogKey, string(data), 0); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

type databaseRepo struct {
	db *gorm.DB
}

func NewDatabaseRepo(db *gorm.DB) Repo {
	return &databaseRepo{db: db}
}

func (r *databaseRepo) Load(ctx context.Context) ([]models.SpecRecord, error) {
	var records []models.SpecRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return records, nil
}

// Save reconciles the table with the snapshot: upsert everything present,
// delete everything absent.
func (r *databaseRepo) Save(ctx context.Context, records []models.SpecRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) == 0 {
			return tx.Where("1 = 1").Delete(&models.SpecRecord{}).Error
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&records).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
		return tx.Where("id NOT IN ?", ids).Delete(&models.SpecRecord{}).Error
	})
}
