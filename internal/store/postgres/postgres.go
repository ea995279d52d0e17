package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) FetchBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, invoice_start_number
		FROM branches
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 16)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Code, &b.InvoiceStartNumber); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *Store) FetchBranchInvoiceCounter(ctx context.Context, branchID int64) (domain.BranchCounter, error) {
	counter := domain.BranchCounter{BranchID: branchID}
	err := s.db.QueryRowContext(ctx, `
		SELECT b.code, b.invoice_start_number,
			COALESCE(MAX(NULLIF(substring(c.booking_no from '([0-9]{1,18})$'), '')::BIGINT), 0)
		FROM branches b
		LEFT JOIN cargos c ON c.branch_id = b.id
		WHERE b.id = $1
		GROUP BY b.id, b.code, b.invoice_start_number
	`, branchID).Scan(&counter.BranchCode, &counter.StartNumber, &counter.HighestObserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BranchCounter{}, fmt.Errorf("branch %d: %w", branchID, store.ErrNotFound)
		}
		return domain.BranchCounter{}, err
	}
	return counter, nil
}

func (s *Store) FetchBranchStaff(ctx context.Context, branchID int64) ([]domain.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, branch_id, role
		FROM staff
		WHERE branch_id = $1 AND role = $2
		ORDER BY name
	`, branchID, domain.StaffRoleOffice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	staff := make([]domain.Staff, 0, 16)
	for rows.Next() {
		var st domain.Staff
		if err := rows.Scan(&st.ID, &st.Name, &st.BranchID, &st.Role); err != nil {
			return nil, err
		}
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

func (s *Store) FetchDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone_code, phone_number
		FROM staff
		WHERE role = $1
		ORDER BY name
	`, domain.StaffRoleDriver)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0, 16)
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.PhoneCode, &d.PhoneNumber); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (s *Store) FetchMasterLists(ctx context.Context, req domain.MasterListRequest) (domain.MasterLists, error) {
	var lists domain.MasterLists
	kinds := store.RequestedKinds(req)
	if len(kinds) == 0 {
		return lists, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, name
		FROM master_options
		WHERE kind = ANY($1)
		ORDER BY kind, sort_order, id
	`, kinds)
	if err != nil {
		return lists, err
	}
	defer rows.Close()

	grouped := make(map[string][]domain.Option, len(kinds))
	for _, kind := range kinds {
		grouped[kind] = []domain.Option{}
	}
	for rows.Next() {
		var kind string
		var opt domain.Option
		if err := rows.Scan(&kind, &opt.ID, &opt.Name); err != nil {
			return lists, err
		}
		grouped[kind] = append(grouped[kind], opt)
	}
	if err := rows.Err(); err != nil {
		return lists, err
	}
	for kind, options := range grouped {
		store.AssignList(&lists, kind, options)
	}
	return lists, nil
}

func (s *Store) FetchPartiesByRole(ctx context.Context, roleID int64) ([]domain.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, role_id
		FROM parties
		WHERE role_id = $1
		ORDER BY name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make([]domain.Party, 0, 64)
	for rows.Next() {
		var p domain.Party
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.RoleID); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (s *Store) PersistCargo(ctx context.Context, record domain.Payload) (domain.PersistedCargo, error) {
	bookingNo, branchID, err := store.RecordKeys(record)
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.PersistedCargo{}, fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}

	cargo := domain.PersistedCargo{BookingNo: bookingNo, BranchID: branchID}
	var stored []byte
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO cargos (booking_no, branch_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		RETURNING id, created_at, payload
	`, bookingNo, branchID, string(payload)).Scan(&cargo.ID, &cargo.CreatedAt, &stored)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.PersistedCargo{}, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidRecord, branchID)
		}
		return domain.PersistedCargo{}, err
	}

	if cargo.Record, err = decodeRecord(stored); err != nil {
		return domain.PersistedCargo{}, err
	}
	cargo.Record["id"] = float64(cargo.ID)
	return cargo, nil
}

// PersistCargoUpdate merges record into the stored payload; keys absent from
// record keep their stored value.
func (s *Store) PersistCargoUpdate(ctx context.Context, id int64, record domain.Payload) error {
	patch := make(domain.Payload, len(record))
	for k, v := range record {
		if k != "id" {
			patch[k] = v
		}
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}
	bookingNo, _ := patch["booking_no"].(string)

	res, err := s.db.ExecContext(ctx, `
		UPDATE cargos
		SET payload = payload || $2::jsonb,
			booking_no = COALESCE(NULLIF($3, ''), booking_no),
			updated_at = now()
		WHERE id = $1
	`, id, string(payload), strings.TrimSpace(bookingNo))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FetchCargoByID(ctx context.Context, id int64) (domain.PersistedCargo, error) {
	cargo := domain.PersistedCargo{ID: id}
	var stored []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT booking_no, branch_id, created_at, payload
		FROM cargos
		WHERE id = $1
	`, id).Scan(&cargo.BookingNo, &cargo.BranchID, &cargo.CreatedAt, &stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PersistedCargo{}, store.ErrNotFound
		}
		return domain.PersistedCargo{}, err
	}

	if cargo.Record, err = decodeRecord(stored); err != nil {
		return domain.PersistedCargo{}, err
	}
	cargo.Record["id"] = float64(id)
	return cargo, nil
}

func decodeRecord(raw []byte) (domain.Payload, error) {
	record := domain.Payload{}
	if len(raw) == 0 {
		return record, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode cargo payload: %w", err)
	}
	return record, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
