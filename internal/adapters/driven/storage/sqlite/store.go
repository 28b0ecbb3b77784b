package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// the facility, run and plan stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at dbPath.
// If dbPath is empty, defaults to ~/.oasis/data/oasis.db.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".oasis", "data", "oasis.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL lets the telemetry writer append while requests read.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// FacilityStore returns a FacilityStore interface backed by this store.
func (s *Store) FacilityStore() driven.FacilityStore {
	return &facilityStore{store: s}
}

// RunStore returns a RunStore interface backed by this store.
func (s *Store) RunStore() driven.RunStore {
	return &runStore{store: s}
}

// PlanStore returns a PlanStore interface backed by this store.
func (s *Store) PlanStore() driven.PlanStore {
	return &planStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Facility Store ====================

// facilityStore implements driven.FacilityStore.
type facilityStore struct {
	store *Store
}

var _ driven.FacilityStore = (*facilityStore)(nil)

const facilityColumns = `id, name, region, district, town, type, ownership, latitude, longitude,
	beds, staff_count, specialties, equipment, services, operational_status,
	capabilities_text, notes, last_inspection`

// List returns facilities matching the query. Scalar conditions are
// evaluated by SQLite; list conditions, sorting and the limit are applied
// to the pre-filtered rows with the same semantics as the in-memory store.
func (s *facilityStore) List(ctx context.Context, query *domain.StructuredQuery) ([]domain.Facility, error) {
	where, args := pushdown(query)
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+facilityColumns+" FROM facilities"+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	var facilities []domain.Facility //nolint:prealloc // size unknown from query
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facilities: %w", err)
	}

	if query == nil {
		if facilities == nil {
			facilities = []domain.Facility{}
		}
		return facilities, nil
	}
	return query.Apply(facilities), nil
}

// Get retrieves a facility by id.
func (s *facilityStore) Get(ctx context.Context, id string) (*domain.Facility, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+facilityColumns+" FROM facilities WHERE id = ?", id)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFacilityNotFound, id)
	}
	return f, err
}

// Count returns the number of facilities.
func (s *facilityStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facilities").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting facilities: %w", err)
	}
	return n, nil
}

// Replace swaps the whole dataset in one transaction.
func (s *facilityStore) Replace(ctx context.Context, facilities []domain.Facility) error {
	for _, f := range facilities {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM facilities"); err != nil {
		return fmt.Errorf("clearing facilities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facilities (`+facilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			district = excluded.district,
			town = excluded.town,
			type = excluded.type,
			ownership = excluded.ownership,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			beds = excluded.beds,
			staff_count = excluded.staff_count,
			specialties = excluded.specialties,
			equipment = excluded.equipment,
			services = excluded.services,
			operational_status = excluded.operational_status,
			capabilities_text = excluded.capabilities_text,
			notes = excluded.notes,
			last_inspection = excluded.last_inspection
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range facilities {
		if _, err := stmt.ExecContext(ctx,
			f.ID, f.Name, f.Region, f.District, f.Town, f.Type, f.Ownership, f.Latitude, f.Longitude,
			f.Beds, f.StaffCount, jsonList(f.Specialties), jsonList(f.Equipment), jsonList(f.Services),
			f.OperationalStatus, f.CapabilitiesText, f.Notes, f.LastInspection,
		); err != nil {
			return fmt.Errorf("saving facility %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// columns maps scalar query fields onto facility columns.
var columns = map[domain.Field]string{
	domain.FieldRegion:            "region",
	domain.FieldType:              "type",
	domain.FieldOperationalStatus: "operational_status",
	domain.FieldBeds:              "beds",
	domain.FieldStaffCount:        "staff_count",
}

var numberOps = map[domain.Operator]string{
	domain.OpEq:  "=",
	domain.OpNe:  "<>",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
}

// pushdown renders the query's scalar conditions as a WHERE clause. Field
// names come from the whitelist above and values are always bound.
func pushdown(query *domain.StructuredQuery) (string, []any) {
	if query == nil {
		return "", nil
	}
	var clauses []string
	var args []any
	for _, c := range query.Conditions {
		col, ok := columns[c.Field]
		if !ok {
			continue
		}
		switch c.Field.Kind() {
		case domain.KindNumber:
			clauses = append(clauses, col+" "+numberOps[c.Op]+" ?")
			args = append(args, c.Number)
		case domain.KindText:
			switch c.Op {
			case domain.OpEq:
				clauses = append(clauses, col+" = ? COLLATE NOCASE")
				args = append(args, c.Text)
			case domain.OpNe:
				clauses = append(clauses, col+" <> ? COLLATE NOCASE")
				args = append(args, c.Text)
			case domain.OpContains:
				clauses = append(clauses, "instr(lower("+col+"), lower(?)) > 0")
				args = append(args, c.Text)
			case domain.OpIn:
				marks := strings.TrimSuffix(strings.Repeat("?, ", len(c.Values)), ", ")
				clauses = append(clauses, col+" COLLATE NOCASE IN ("+marks+")")
				for _, v := range c.Values {
					args = append(args, v)
				}
			}
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*domain.Facility, error) {
	var f domain.Facility
	var specialties, equipment, services string
	if err := row.Scan(&f.ID, &f.Name, &f.Region, &f.District, &f.Town, &f.Type, &f.Ownership,
		&f.Latitude, &f.Longitude, &f.Beds, &f.StaffCount, &specialties, &equipment, &services,
		&f.OperationalStatus, &f.CapabilitiesText, &f.Notes, &f.LastInspection); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning facility: %w", err)
	}
	for _, l := range []struct {
		raw  string
		dest *[]string
	}{{specialties, &f.Specialties}, {equipment, &f.Equipment}, {services, &f.Services}} {
		if err := json.Unmarshal([]byte(l.raw), l.dest); err != nil {
			return nil, fmt.Errorf("unmarshaling facility %s lists: %w", f.ID, err)
		}
	}
	return &f, nil
}

func jsonList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

// ==================== Run Store ====================

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// Append writes a run record. A duplicate run id is an error.
func (s *runStore) Append(ctx context.Context, record domain.RunRecord) error {
	params, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("marshalling params: %w", err)
	}
	metrics, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("marshalling metrics: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO run_records (run_id, run_name, type, status, params, metrics, start_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.RunID, record.RunName, string(record.Type), record.Status,
		string(params), string(metrics), record.StartTime.UnixNano())
	if err != nil {
		return fmt.Errorf("saving run %s: %w", record.RunID, err)
	}
	return nil
}

// List returns the newest records first.
func (s *runStore) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = domain.MaxRunLimit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, run_name, type, status, params, metrics, start_ns
		FROM run_records ORDER BY start_ns DESC, run_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.RunRecord{}
	for rows.Next() {
		var r domain.RunRecord
		var runType, params, metrics string
		var startNs int64
		if err := rows.Scan(&r.RunID, &r.RunName, &runType, &r.Status, &params, &metrics, &startNs); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Type = domain.RunType(runType)
		r.StartTime = time.Unix(0, startNs).UTC()
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("unmarshaling params: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshaling metrics: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ==================== Plan Store ====================

// planStore implements driven.PlanStore.
type planStore struct {
	store *Store
}

var _ driven.PlanStore = (*planStore)(nil)

// Save stores or updates a plan.
func (s *planStore) Save(ctx context.Context, plan domain.Plan) error {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO plans (plan_id, region, specialty, plan_text, created_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET
			region = excluded.region,
			specialty = excluded.specialty,
			plan_text = excluded.plan_text
	`, plan.ID, plan.Region, plan.Specialty, plan.Text, plan.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// Get retrieves a plan by id.
func (s *planStore) Get(ctx context.Context, id string) (*domain.Plan, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT plan_id, region, specialty, plan_text, created_ns FROM plans WHERE plan_id = ?
	`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, id)
	}
	return p, err
}

// List returns the newest plans first.
func (s *planStore) List(ctx context.Context, limit int) ([]domain.Plan, error) {
	if limit <= 0 {
		limit = domain.MaxRunLimit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT plan_id, region, specialty, plan_text, created_ns
		FROM plans ORDER BY created_ns DESC, plan_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	plans := []domain.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}
	return plans, nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var p domain.Plan
	var createdNs int64
	if err := row.Scan(&p.ID, &p.Region, &p.Specialty, &p.Text, &createdNs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning plan: %w", err)
	}
	p.CreatedAt = time.Unix(0, createdNs).UTC()
	return &p, nil
}
