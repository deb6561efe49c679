package db

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backend is a store for both tasks and accounts.
type Backend interface {
	TaskStore
	AccountStore
}

// Repository is the single writer for a Backend. Each read-modify-write cycle reloads the whole
// collection, applies the mutation and saves it while holding the lock, so callers sharing a
// Repository never lose each other's updates.
type Repository struct {
	mu      sync.Mutex
	backend Backend
}

// NewRepository returns a Repository that owns the given backend.
func NewRepository(backend Backend) *Repository {
	return &Repository{backend: backend}
}

// Tasks returns a snapshot of all stored tasks.
func (r *Repository) Tasks(ctx context.Context) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadTasks(ctx)
}

// UpdateTasks loads all tasks, passes them to fn and saves what fn returns. Nothing is saved when fn
// returns an error, which is passed through unchanged.
func (r *Repository) UpdateTasks(ctx context.Context, fn func(tasks []*Task) ([]*Task, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.loadTasks(ctx)
	if err != nil {
		return err
	}

	updated, err := fn(tasks)
	if err != nil {
		return err
	}

	return r.backend.SaveTasks(ctx, updated)
}

// Accounts returns a snapshot of all stored accounts.
func (r *Repository) Accounts(ctx context.Context) (map[string]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.LoadAccounts(ctx)
}

// UpdateAccounts loads all accounts, lets fn mutate the map and saves it unless fn returns an error.
func (r *Repository) UpdateAccounts(ctx context.Context, fn func(accounts map[string]Account) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.backend.LoadAccounts(ctx)
	if err != nil {
		return err
	}

	if err := fn(accounts); err != nil {
		return err
	}

	return r.backend.SaveAccounts(ctx, accounts)
}

// loadTasks assigns an id to legacy records written before tasks had one and saves them right away,
// so ids stay stable across loads.
func (r *Repository) loadTasks(ctx context.Context) ([]*Task, error) {
	tasks, err := r.backend.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}

	assigned := 0

	for _, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
			assigned++
		}
	}

	if assigned > 0 {
		log.Info().Int("count", assigned).Msg("assigned ids to legacy tasks")

		if err := r.backend.SaveTasks(ctx, tasks); err != nil {
			return nil, err
		}
	}

	return tasks, nil
}
