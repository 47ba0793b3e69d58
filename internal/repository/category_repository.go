package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// CategoryRepository reads the categories an owner has used on tasks.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID uint) ([]model.CategorySummary, error) {
	var categories []model.CategorySummary
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("category AS name, COUNT(*) AS total, SUM(CASE WHEN completed THEN 0 ELSE 1 END) AS open").
		Where("user_id = ?", userID).
		Group("category").
		Order("category ASC").
		Scan(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return mergeBySlug(categories), nil
}

// mergeBySlug folds names that differ only in case or spacing into one
// summary, keeping the first spelling seen.
func mergeBySlug(rows []model.CategorySummary) []model.CategorySummary {
	merged := make([]model.CategorySummary, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		key := model.CategorySlug(row.Name)
		if i, ok := index[key]; ok {
			merged[i].Total += row.Total
			merged[i].Open += row.Open
			continue
		}
		index[key] = len(merged)
		row.Name = model.NormalizeCategory(row.Name)
		row.Slug = key
		merged = append(merged, row)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Slug < merged[j].Slug })
	return merged
}
