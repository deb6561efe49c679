package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const filePerms = 0o644

// TaskStore loads and saves the whole task collection.
type TaskStore interface {
	LoadTasks(ctx context.Context) ([]*Task, error)
	SaveTasks(ctx context.Context, tasks []*Task) error
}

// AccountStore loads and saves the whole username -> account mapping.
type AccountStore interface {
	LoadAccounts(ctx context.Context) (map[string]Account, error)
	SaveAccounts(ctx context.Context, accounts map[string]Account) error
}

// JSONStore keeps tasks and accounts in two flat JSON files.
//
// Loading never fails on a missing or corrupt file: both are treated as an empty collection, and the
// corrupt content is overwritten by the next save.
type JSONStore struct {
	TasksFile    string
	AccountsFile string
}

// NewJSONStore returns a store backed by the given files. Neither file needs to exist yet.
func NewJSONStore(tasksFile, accountsFile string) *JSONStore {
	return &JSONStore{TasksFile: tasksFile, AccountsFile: accountsFile}
}

// LoadTasks reads the task file.
func (s *JSONStore) LoadTasks(ctx context.Context) ([]*Task, error) {
	tasks := []*Task{}

	if !readJSON(s.TasksFile, &tasks) {
		return []*Task{}, nil
	}

	// a literal null in the file decodes into a nil slice
	if tasks == nil {
		tasks = []*Task{}
	}

	return tasks, nil
}

// SaveTasks replaces the task file with the given tasks.
func (s *JSONStore) SaveTasks(ctx context.Context, tasks []*Task) error {
	if tasks == nil {
		tasks = []*Task{}
	}

	if err := writeJSON(s.TasksFile, tasks); err != nil {
		return fmt.Errorf("error saving tasks to %s: %w", s.TasksFile, err)
	}

	return nil
}

// LoadAccounts reads the account file.
func (s *JSONStore) LoadAccounts(ctx context.Context) (map[string]Account, error) {
	accounts := map[string]Account{}

	if !readJSON(s.AccountsFile, &accounts) || accounts == nil {
		return map[string]Account{}, nil
	}

	return accounts, nil
}

// SaveAccounts replaces the account file with the given accounts.
func (s *JSONStore) SaveAccounts(ctx context.Context, accounts map[string]Account) error {
	if accounts == nil {
		accounts = map[string]Account{}
	}

	if err := writeJSON(s.AccountsFile, accounts); err != nil {
		return fmt.Errorf("error saving accounts to %s: %w", s.AccountsFile, err)
	}

	return nil
}

// readJSON decodes filename into v and reports whether it succeeded.
func readJSON(filename string, v interface{}) bool {
	data, err := os.ReadFile(filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", filename).Msg("unable to read store, treating it as empty")
		}

		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("corrupt store, treating it as empty")

		return false
	}

	return true
}

// writeJSON writes v to a temp file next to filename and renames it into place.
func writeJSON(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), filePerms); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filename)
}
