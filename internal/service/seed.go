package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// Demo account created on an empty database.
const (
	DemoUsername = "demo_user"
	DemoEmail    = "demo@taskflow.com"
	DemoPassword = "demo123"
)

// Seeder fills an empty database with a demo account.
type Seeder struct {
	users *UserService
	tasks *repository.TaskRepository
	count func(ctx context.Context) (int64, error)
	tx    *repository.Transactor
}

func NewSeeder(users *UserService, userRepo *repository.UserRepository, tasks *repository.TaskRepository, tx *repository.Transactor) *Seeder {
	return &Seeder{users: users, tasks: tasks, count: userRepo.Count, tx: tx}
}

// Seed creates the demo user and sample tasks when no user exists yet.
// It reports whether anything was written.
func (s *Seeder) Seed(ctx context.Context, now time.Time) (bool, error) {
	n, err := s.count(ctx)
	if err != nil {
		return false, persistence("count users", err)
	}
	if n > 0 {
		return false, nil
	}

	user, err := s.users.Register(ctx, RegisterInput{
		Username:  DemoUsername,
		Email:     DemoEmail,
		FirstName: "Demo",
		LastName:  "User",
		Password:  DemoPassword,
	})
	if err != nil {
		return false, err
	}

	tasks := demoTasks(user.ID, now)
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)
		for i := range tasks {
			if err := repo.Create(ctx, &tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, persistence("seed tasks", err)
	}
	return true, nil
}

func demoTasks(userID uint, now time.Time) []model.Task {
	at := func(days int) *time.Time {
		t := now.AddDate(0, 0, days)
		return &t
	}

	tasks := []model.Task{
		{
			Title:       "Complete CS50 Final Project",
			Description: "Build a comprehensive web app showcasing full-stack development skills",
			Priority:    model.PriorityHigh,
			Category:    "education",
			DueDate:     at(7),
		},
		{
			Title:       "Review Flask Documentation",
			Description: "Study Flask best practices and advanced features for web development",
			Priority:    model.PriorityMedium,
			Category:    "learning",
		},
		{
			Title:       "Practice SQL Queries",
			Description: "Work through database exercises to improve query skills",
			Priority:    model.PriorityMedium,
			Category:    "learning",
			DueDate:     at(-1),
		},
		{
			Title:       "Set up development environment",
			Description: "Configure local dev tools and IDE settings",
			Priority:    model.PriorityLow,
			Category:    "setup",
			DueDate:     at(-3),
		},
	}
	tasks[2].MarkComplete(now)
	tasks[3].MarkComplete(now)
	for i := range tasks {
		tasks[i].UserID = userID
	}
	return tasks
}
