package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	// use the sqlite db driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed base.sql
var baseSQL string

const taskColumns = `id, title, description, deadline, priority, completed, progress,
	end_time, reminder_time, notified, created_by, created_at`

// Database is a sqlite backed TaskStore and AccountStore. It keeps the flat file semantics: every save
// replaces the whole collection, inside a single transaction.
type Database struct {
	conn *sqlx.DB
}

type taskRow struct {
	Position int `db:"position"`
	Task
}

// NewDatabase connects to the sqlite database at the given filename and initializes the structure
// if not present.
func NewDatabase(ctx context.Context, filename string) (*Database, error) {
	conn, err := sqlx.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", filename, err)
	}

	database := Database{conn: conn}

	if err := database.initialize(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	return &database, nil
}

func (d *Database) initialize(ctx context.Context) error {
	// run idempotent setup sql to create empty tables if they don't exist
	if _, err := d.conn.ExecContext(ctx, baseSQL); err != nil {
		return fmt.Errorf("error running base sql: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.conn.Close()
}

// LoadTasks returns all tasks in their stored order.
func (d *Database) LoadTasks(ctx context.Context) ([]*Task, error) {
	tasks := []*Task{}

	err := d.conn.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM task ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks: %w", err)
	}

	return tasks, nil
}

// SaveTasks replaces every stored task with the given ones.
func (d *Database) SaveTasks(ctx context.Context, tasks []*Task) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting task transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM task`); err != nil {
		return fmt.Errorf("error clearing tasks: %w", err)
	}

	insertSQL := `INSERT INTO task (position, ` + taskColumns + `)
		VALUES (:position, :id, :title, :description, :deadline, :priority, :completed, :progress,
			:end_time, :reminder_time, :notified, :created_by, :created_at)`

	for position, task := range tasks {
		if _, err := tx.NamedExecContext(ctx, insertSQL, taskRow{Position: position, Task: *task}); err != nil {
			return fmt.Errorf("error saving task '%s': %w", task.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing tasks: %w", err)
	}

	return nil
}

// LoadAccounts returns all accounts keyed by username.
func (d *Database) LoadAccounts(ctx context.Context) (map[string]Account, error) {
	rows, err := d.conn.QueryxContext(ctx, `SELECT username, password FROM account`)
	if err != nil {
		return nil, fmt.Errorf("error loading accounts: %w", err)
	}

	defer rows.Close()

	accounts := map[string]Account{}

	for rows.Next() {
		var username, password string

		if err := rows.Scan(&username, &password); err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}

		accounts[username] = Account{Password: password}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning accounts: %w", err)
	}

	return accounts, nil
}

// SaveAccounts replaces every stored account with the given ones.
func (d *Database) SaveAccounts(ctx context.Context, accounts map[string]Account) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting account transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM account`); err != nil {
		return fmt.Errorf("error clearing accounts: %w", err)
	}

	for username, account := range accounts {
		_, err := tx.ExecContext(ctx, `INSERT INTO account (username, password) VALUES ($1, $2)`,
			username, account.Password)
		if err != nil {
			return fmt.Errorf("error saving account %s: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing accounts: %w", err)
	}

	return nil
}
