/*
Package sqlite provides a SQLite-backed implementation of the scheduling stores.

PURPOSE:
  Implements scheduling.Store (shifts, exclusions, hour limits, budgets,
  rates, allocations, payroll periods, settings) on SQLite through
  database/sql.

KEY TABLES:
  shifts:             One row per shift; dates as YYYY-MM-DD, times as HH:MM:SS
  payroll_periods:    The generated 14-day sequence
  exclusion_periods:  Blackout windows with a scope (general/employee/child)
  hour_limits:        Weekly caps per (employee, child)
  child_budgets:      Funded dollars/hours per child per date range
  employee_rates:     Hourly rates with effective/end dates
  budget_allocations: Planned hours per (child, employee, period)
  app_config:         Key/value settings (payroll anchor date)

INDEXES:
  - idx_shifts_date, idx_shifts_employee_date, idx_shifts_child_date:
    range scans for conflicts, summaries and forecasts (hot path)
  - idx_hour_limits_active_pair: at most one active limit per pair
  - budget_allocations UNIQUE(child_id, employee_id, period_id): upsert key

TRANSACTIONS:
  ReplacePeriods, ImportShifts and AddRate each run in one transaction
  through withTx, so readers never see half a sequence, half an import,
  or two open rates.

TIME ENCODING:
  End-of-day is written as 23:59:59 and read back as 24:00, the
  ClockTime wire convention.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - scheduling/store.go: Interface definitions
  - scheduling/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
)

// Store implements scheduling.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ scheduling.Store    = (*Store)(nil)
	_ scheduling.Resetter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		service_code TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		is_imported INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'manual',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_date
		ON shifts(date);
	CREATE INDEX IF NOT EXISTS idx_shifts_employee_date
		ON shifts(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_child_date
		ON shifts(child_id, date);

	CREATE TABLE IF NOT EXISTS payroll_periods (
		id INTEGER PRIMARY KEY,
		start_date TEXT NOT NULL UNIQUE,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exclusion_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		scope_kind TEXT NOT NULL DEFAULT 'general',
		scope_id TEXT,
		reason TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_exclusions_dates
		ON exclusion_periods(start_date, end_date);

	CREATE TABLE IF NOT EXISTS hour_limits (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		max_hours_per_week TEXT NOT NULL,
		alert_threshold TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_hour_limits_active_pair
		ON hour_limits(employee_id, child_id) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS child_budgets (
		id TEXT PRIMARY KEY,
		child_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		budget_amount TEXT NOT NULL,
		budget_hours TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_child_budgets_child
		ON child_budgets(child_id, period_start, period_end);

	CREATE TABLE IF NOT EXISTS employee_rates (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_employee_rates_employee
		ON employee_rates(employee_id, effective_date DESC);

	CREATE TABLE IF NOT EXISTS budget_allocations (
		id TEXT PRIMARY KEY,
		child_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		period_id INTEGER NOT NULL,
		allocated_hours TEXT NOT NULL,
		notes TEXT,
		UNIQUE(child_id, employee_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// withTx executes fn within a database transaction. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, employee_id, child_id, date, start_time, end_time,
	service_code, status, is_imported, source, created_at`

// ListShifts returns shifts ordered by date, start time and id.
func (s *Store) ListShifts(ctx context.Context, filter scheduling.ShiftFilter) ([]scheduling.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.From != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(filter.EmployeeID))
	}
	if filter.ChildID != "" {
		where = append(where, "child_id = ?")
		args = append(args, string(filter.ChildID))
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, start_time, id"

	return queryShifts(ctx, s.db, query, args...)
}

func queryShifts(ctx context.Context, db execer, query string, args ...any) ([]scheduling.Shift, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var result []scheduling.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sh)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(row scanner) (scheduling.Shift, error) {
	var (
		sh                        scheduling.Shift
		id, employeeID, childID   string
		date, startTime, endTime  string
		serviceCode               sql.NullString
		status, source, createdAt string
		imported                  bool
	)
	if err := row.Scan(&id, &employeeID, &childID, &date, &startTime, &endTime,
		&serviceCode, &status, &imported, &source, &createdAt); err != nil {
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}

	d, err := generic.ParseDate(date)
	if err != nil {
		return sh, fmt.Errorf("shift %s: %w", id, err)
	}
	start, err := generic.ParseClockTime(startTime)
	if err != nil {
		return sh, fmt.Errorf("shift %s: %w", id, err)
	}
	end, err := generic.ParseClockTime(endTime)
	if err != nil {
		return sh, fmt.Errorf("shift %s: %w", id, err)
	}

	sh = scheduling.Shift{
		ID:          scheduling.ShiftID(id),
		EmployeeID:  scheduling.EmployeeID(employeeID),
		ChildID:     scheduling.ChildID(childID),
		Date:        d,
		Start:       start,
		End:         end.Normalize(),
		ServiceCode: fromNullString(serviceCode),
		Status:      scheduling.ShiftStatus(status),
		IsImported:  imported,
		Source:      scheduling.ShiftSource(source),
	}
	sh.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return sh, nil
}

func (s *Store) GetShift(ctx context.Context, id scheduling.ShiftID) (*scheduling.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, string(id))
	sh, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sh, nil
}

// SaveShift inserts or replaces a shift by id.
func (s *Store) SaveShift(ctx context.Context, sh scheduling.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveShift(ctx, s.db, sh)
}

func saveShift(ctx context.Context, db execer, sh scheduling.Shift) error {
	createdAt := sh.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			child_id = excluded.child_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			service_code = excluded.service_code,
			status = excluded.status,
			is_imported = excluded.is_imported,
			source = excluded.source
	`,
		string(sh.ID),
		string(sh.EmployeeID),
		string(sh.ChildID),
		sh.Date.String(),
		sh.Start.String(),
		sh.End.String(),
		toNullString(sh.ServiceCode),
		string(sh.Status),
		sh.IsImported,
		string(sh.Source),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (s *Store) DeleteShift(ctx context.Context, id scheduling.ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return generic.ErrShiftNotFound
	}
	return nil
}

// ImportShifts writes imported shifts, deleting manual shifts with the same
// (employee, child, date, start_time), in one transaction. Rows already
// imported with the same start and end times are counted as duplicates.
func (s *Store) ImportShifts(ctx context.Context, shifts []scheduling.Shift) (scheduling.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result scheduling.ImportResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sh := range shifts {
			var dup int
			err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM shifts
				WHERE is_imported = 1 AND id != ?
				  AND employee_id = ? AND child_id = ? AND date = ? AND start_time = ? AND end_time = ?
			`, string(sh.ID), string(sh.EmployeeID), string(sh.ChildID), sh.Date.String(),
				sh.Start.String(), sh.End.String()).Scan(&dup)
			if err != nil {
				return fmt.Errorf("failed to check for duplicate import: %w", err)
			}
			if dup > 0 {
				result.Duplicates++
				continue
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM shifts
				WHERE is_imported = 0 AND id != ?
				  AND employee_id = ? AND child_id = ? AND date = ? AND start_time = ?
			`, string(sh.ID), string(sh.EmployeeID), string(sh.ChildID), sh.Date.String(), sh.Start.String())
			if err != nil {
				return fmt.Errorf("failed to supersede manual shifts: %w", err)
			}
			n, _ := res.RowsAffected()
			result.Superseded += int(n)

			if err := saveShift(ctx, tx, sh); err != nil {
				return err
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return scheduling.ImportResult{}, err
	}
	return result, nil
}

// =============================================================================
// EXCLUSIONS
// =============================================================================

func (s *Store) ListExclusions(ctx context.Context, filter scheduling.ExclusionFilter) ([]scheduling.ExclusionPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}
	if filter.To != nil {
		where = append(where, "start_date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.From != nil {
		where = append(where, "end_date >= ?")
		args = append(args, filter.From.String())
	}

	query := `SELECT id, name, start_date, end_date, start_time, end_time,
		scope_kind, scope_id, reason, active FROM exclusion_periods`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	var result []scheduling.ExclusionPeriod
	for rows.Next() {
		var (
			e                  scheduling.ExclusionPeriod
			start, end         string
			startTime, endTime sql.NullString
			scopeKind          string
			scopeID, reason    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &start, &end, &startTime, &endTime,
			&scopeKind, &scopeID, &reason, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		if e.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if e.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		if e.StartTime, err = parseNullClock(startTime); err != nil {
			return nil, err
		}
		if e.EndTime, err = parseNullClock(endTime); err != nil {
			return nil, err
		}
		e.Scope = scheduling.Scope{Kind: scheduling.ScopeKind(scopeKind), ID: scopeID.String}
		e.Reason = fromNullString(reason)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) SaveExclusion(ctx context.Context, e scheduling.ExclusionPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopeKind := e.Scope.Kind
	if scopeKind == "" {
		scopeKind = scheduling.ScopeGeneral
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO exclusion_periods
		(id, name, start_date, end_date, start_time, end_time, scope_kind, scope_id, reason, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Name,
		e.Start.String(),
		e.End.String(),
		clockOrNull(e.StartTime),
		clockOrNull(e.EndTime),
		string(scopeKind),
		nullString(e.Scope.ID),
		toNullString(e.Reason),
		e.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save exclusion: %w", err)
	}
	return nil
}

func (s *Store) DeactivateExclusion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE exclusion_periods SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate exclusion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return generic.ErrExclusionNotFound
	}
	return nil
}

// =============================================================================
// HOUR LIMITS
// =============================================================================

const limitColumns = `id, employee_id, child_id, max_hours_per_week, alert_threshold, active`

func (s *Store) GetHourLimit(ctx context.Context, employeeID scheduling.EmployeeID, childID scheduling.ChildID) (*scheduling.HourLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits, err := s.queryLimits(ctx,
		`SELECT `+limitColumns+` FROM hour_limits WHERE employee_id = ? AND child_id = ? AND active = 1`,
		string(employeeID), string(childID))
	if err != nil || len(limits) == 0 {
		return nil, err
	}
	return &limits[0], nil
}

func (s *Store) ListHourLimits(ctx context.Context, activeOnly bool) ([]scheduling.HourLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + limitColumns + ` FROM hour_limits`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY employee_id, child_id`
	return s.queryLimits(ctx, query)
}

func (s *Store) queryLimits(ctx context.Context, query string, args ...any) ([]scheduling.HourLimit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hour limits: %w", err)
	}
	defer rows.Close()

	var result []scheduling.HourLimit
	for rows.Next() {
		var (
			l                   scheduling.HourLimit
			employeeID, childID string
			maxHours            string
			alert               sql.NullString
		)
		if err := rows.Scan(&l.ID, &employeeID, &childID, &maxHours, &alert, &l.Active); err != nil {
			return nil, fmt.Errorf("failed to scan hour limit: %w", err)
		}
		l.EmployeeID = scheduling.EmployeeID(employeeID)
		l.ChildID = scheduling.ChildID(childID)
		l.MaxHoursPerWeek = parseAmount(maxHours, generic.UnitHours)
		l.AlertThreshold = parseNullAmount(alert, generic.UnitHours)
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) SaveHourLimit(ctx context.Context, l scheduling.HourLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hour_limits (`+limitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			max_hours_per_week = excluded.max_hours_per_week,
			alert_threshold = excluded.alert_threshold,
			active = excluded.active
	`,
		l.ID,
		string(l.EmployeeID),
		string(l.ChildID),
		l.MaxHoursPerWeek.Value.String(),
		amountOrNull(l.AlertThreshold),
		l.Active,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateLimit
		}
		return fmt.Errorf("failed to save hour limit: %w", err)
	}
	return nil
}

// =============================================================================
// BUDGETS
// =============================================================================

func (s *Store) ListBudgets(ctx context.Context, childID scheduling.ChildID, window *generic.Period) ([]scheduling.ChildBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if childID != "" {
		where = append(where, "child_id = ?")
		args = append(args, string(childID))
	}
	if window != nil {
		where = append(where, "period_start <= ? AND period_end >= ?")
		args = append(args, window.End.String(), window.Start.String())
	}

	query := `SELECT id, child_id, period_start, period_end, budget_amount, budget_hours, notes
		FROM child_budgets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY child_id, period_start DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var result []scheduling.ChildBudget
	for rows.Next() {
		var (
			b            scheduling.ChildBudget
			child        string
			start, end   string
			amount       string
			hours, notes sql.NullString
		)
		if err := rows.Scan(&b.ID, &child, &start, &end, &amount, &hours, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.ChildID = scheduling.ChildID(child)
		if b.PeriodStart, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if b.PeriodEnd, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		b.BudgetAmount = parseAmount(amount, generic.UnitDollars)
		b.BudgetHours = parseNullAmount(hours, generic.UnitHours)
		b.Notes = notes.String
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) SaveBudget(ctx context.Context, b scheduling.ChildBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO child_budgets
		(id, child_id, period_start, period_end, budget_amount, budget_hours, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		string(b.ChildID),
		b.PeriodStart.String(),
		b.PeriodEnd.String(),
		b.BudgetAmount.Value.String(),
		amountOrNull(b.BudgetHours),
		nullString(b.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// =============================================================================
// RATES
// =============================================================================

// ListRates returns rates newest effective date first.
func (s *Store) ListRates(ctx context.Context, employeeID scheduling.EmployeeID) ([]scheduling.EmployeeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRates(ctx, s.db, employeeID)
}

func listRates(ctx context.Context, db execer, employeeID scheduling.EmployeeID) ([]scheduling.EmployeeRate, error) {
	query := `SELECT id, employee_id, hourly_rate, effective_date, end_date, notes FROM employee_rates`
	var args []any
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, string(employeeID))
	}
	query += ` ORDER BY effective_date DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var result []scheduling.EmployeeRate
	for rows.Next() {
		var (
			r          scheduling.EmployeeRate
			employee   string
			rate       string
			effective  string
			end, notes sql.NullString
		)
		if err := rows.Scan(&r.ID, &employee, &rate, &effective, &end, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		r.EmployeeID = scheduling.EmployeeID(employee)
		r.HourlyRate = parseAmount(rate, generic.UnitDollars)
		if r.EffectiveDate, err = generic.ParseDate(effective); err != nil {
			return nil, err
		}
		if end.Valid {
			d, err := generic.ParseDate(end.String)
			if err != nil {
				return nil, err
			}
			r.EndDate = &d
		}
		r.Notes = notes.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// AddRate inserts r and closes the employee's open rate, in one transaction.
func (s *Store) AddRate(ctx context.Context, r scheduling.EmployeeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := listRates(ctx, tx, r.EmployeeID)
		if err != nil {
			return err
		}
		if closed, ok := scheduling.CloseOpenRate(existing, r); ok {
			if _, err := tx.ExecContext(ctx,
				`UPDATE employee_rates SET end_date = ? WHERE id = ?`,
				closed.EndDate.String(), closed.ID); err != nil {
				return fmt.Errorf("failed to close open rate: %w", err)
			}
		}

		var end sql.NullString
		if r.EndDate != nil {
			end = nullString(r.EndDate.String())
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO employee_rates
			(id, employee_id, hourly_rate, effective_date, end_date, notes)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			r.ID,
			string(r.EmployeeID),
			r.HourlyRate.Value.String(),
			r.EffectiveDate.String(),
			end,
			nullString(r.Notes),
		)
		if err != nil {
			return fmt.Errorf("failed to insert rate: %w", err)
		}
		return nil
	})
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// ListAllocations returns allocations for a period, or all when periodID is 0.
func (s *Store) ListAllocations(ctx context.Context, periodID scheduling.PeriodID) ([]scheduling.BudgetAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, child_id, employee_id, period_id, allocated_hours, notes FROM budget_allocations`
	var args []any
	if periodID != 0 {
		query += ` WHERE period_id = ?`
		args = append(args, int(periodID))
	}
	query += ` ORDER BY child_id, employee_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var result []scheduling.BudgetAllocation
	for rows.Next() {
		var (
			a               scheduling.BudgetAllocation
			child, employee string
			period          int
			hours           string
			notes           sql.NullString
		)
		if err := rows.Scan(&a.ID, &child, &employee, &period, &hours, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		a.ChildID = scheduling.ChildID(child)
		a.EmployeeID = scheduling.EmployeeID(employee)
		a.PeriodID = scheduling.PeriodID(period)
		a.AllocatedHours = parseAmount(hours, generic.UnitHours)
		a.Notes = notes.String
		result = append(result, a)
	}
	return result, rows.Err()
}

// SaveAllocation upserts by (child, employee, period); the first id is kept.
func (s *Store) SaveAllocation(ctx context.Context, a scheduling.BudgetAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_allocations (id, child_id, employee_id, period_id, allocated_hours, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(child_id, employee_id, period_id) DO UPDATE SET
			allocated_hours = excluded.allocated_hours,
			notes = excluded.notes
	`,
		a.ID,
		string(a.ChildID),
		string(a.EmployeeID),
		int(a.PeriodID),
		a.AllocatedHours.Value.String(),
		nullString(a.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

// =============================================================================
// PERIODS AND SETTINGS
// =============================================================================

func (s *Store) ListPeriods(ctx context.Context) ([]scheduling.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, start_date, end_date FROM payroll_periods ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var result []scheduling.PayrollPeriod
	for rows.Next() {
		var (
			id         int
			start, end string
			p          scheduling.PayrollPeriod
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.ID = scheduling.PeriodID(id)
		if p.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if p.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ReplacePeriods deletes the sequence and writes periods in one transaction.
func (s *Store) ReplacePeriods(ctx context.Context, periods []scheduling.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payroll_periods`); err != nil {
			return fmt.Errorf("failed to clear periods: %w", err)
		}
		for _, p := range periods {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO payroll_periods (id, start_date, end_date) VALUES (?, ?, ?)`,
				int(p.ID), p.Start.String(), p.End.String()); err != nil {
				return fmt.Errorf("failed to insert period %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Reset clears every table (for demo scenario loading).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"shifts", "payroll_periods", "exclusion_periods", "hour_limits",
		"child_budgets", "employee_rates", "budget_allocations", "app_config",
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func clockOrNull(c *generic.ClockTime) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return nullString(c.String())
}

func parseNullClock(ns sql.NullString) (*generic.ClockTime, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	c, err := generic.ParseClockTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func parseAmount(value string, unit generic.Unit) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  unit,
	}
}

func parseNullAmount(ns sql.NullString, unit generic.Unit) *generic.Amount {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	a := parseAmount(ns.String, unit)
	return &a
}

func amountOrNull(a *generic.Amount) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return nullString(a.Value.String())
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
