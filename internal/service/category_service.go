package service

import (
	"context"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// List returns the owner's categories with task counts, by name.
func (s *CategoryService) List(ctx context.Context, ownerID uint) ([]model.CategorySummary, error) {
	categories, err := s.repo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, persistence("list categories", err)
	}
	return categories, nil
}
