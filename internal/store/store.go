package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	_ "modernc.org/sqlite"
)

// Drivers accepted by NewWithDSN.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrDuplicateBrand is returned when a workspace already owns the brand.
var ErrDuplicateBrand = errors.New("workspace for brand already exists")

// Store persists workspaces and the insight facts derived for them.
type Store struct {
	DB     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

// Workspace is a registered brand.
type Workspace struct {
	ID          string    `json:"id"`
	BrandName   string    `json:"brandName"`
	Domain      string    `json:"domain"`
	RefreshCron string    `json:"refreshCron,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New wraps an open database. driver selects the placeholder style.
func New(db *sql.DB, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &Store{
		DB:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		now:    time.Now,
	}
}

// NewWithDSN opens and pings the database.
func NewWithDSN(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// modernc serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, driver), nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Ping is used by health checks.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// CreateWorkspace inserts ws with a fresh id.
func (s *Store) CreateWorkspace(ctx context.Context, ws Workspace) (Workspace, error) {
	ws.BrandName = strings.TrimSpace(ws.BrandName)
	ws.Domain = strings.TrimSpace(ws.Domain)
	if ws.BrandName == "" || ws.Domain == "" {
		return Workspace{}, errors.New("store: brand and domain required")
	}
	if _, found, err := s.WorkspaceByBrand(ctx, ws.BrandName); err != nil {
		return Workspace{}, err
	} else if found {
		return Workspace{}, fmt.Errorf("%w: %s", ErrDuplicateBrand, ws.BrandName)
	}
	ws.ID = uuid.NewString()
	ws.CreatedAt = s.now().UTC()
	_, err := s.sb.Insert("workspaces").
		Columns("id", "brand_name", "domain", "refresh_cron", "created_at").
		Values(ws.ID, ws.BrandName, ws.Domain, ws.RefreshCron, ws.CreatedAt).
		RunWith(s.DB).ExecContext(ctx)
	if err != nil {
		return Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	return ws, nil
}

// WorkspaceByBrand returns the id of the workspace whose brand name matches
// exactly.
func (s *Store) WorkspaceByBrand(ctx context.Context, brand string) (string, bool, error) {
	var id string
	err := s.sb.Select("id").From("workspaces").
		Where(sq.Eq{"brand_name": brand}).
		Limit(1).
		RunWith(s.DB).QueryRowContext(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("workspace by brand: %w", err)
	}
	return id, true, nil
}

// GetWorkspace loads one workspace.
func (s *Store) GetWorkspace(ctx context.Context, id string) (Workspace, bool, error) {
	var ws Workspace
	err := s.sb.Select("id", "brand_name", "domain", "refresh_cron", "created_at").
		From("workspaces").
		Where(sq.Eq{"id": id}).
		RunWith(s.DB).QueryRowContext(ctx).
		Scan(&ws.ID, &ws.BrandName, &ws.Domain, &ws.RefreshCron, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, false, nil
	}
	if err != nil {
		return Workspace{}, false, fmt.Errorf("get workspace: %w", err)
	}
	return ws, true, nil
}

// ListWorkspaces returns every workspace, oldest first.
func (s *Store) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.sb.Select("id", "brand_name", "domain", "refresh_cron", "created_at").
		From("workspaces").
		OrderBy("created_at ASC").
		RunWith(s.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()
	out := []Workspace{}
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.BrandName, &ws.Domain, &ws.RefreshCron, &ws.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// DeleteWorkspace removes a workspace and its facts.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) (bool, error) {
	res, err := s.sb.Delete("workspaces").Where(sq.Eq{"id": id}).RunWith(s.DB).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("delete workspace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WriteFacts appends facts in one statement. Facts must already carry ids.
func (s *Store) WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	q := s.sb.Insert("insights").
		Columns("id", "workspace_id", "title", "summary", "confidence", "source", "data", "created_at")
	for _, f := range facts {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		created := f.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		data := string(f.Data)
		if data == "" {
			data = "null"
		}
		q = q.Values(f.ID, workspaceID, f.Title, f.Summary, f.Confidence, f.Source, data, created.UTC())
	}
	if _, err := q.RunWith(s.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert insights: %w", err)
	}
	return nil
}

// ListFacts returns the newest facts of a workspace first.
func (s *Store) ListFacts(ctx context.Context, workspaceID string, limit int) ([]insight.Fact, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.sb.Select("id", "workspace_id", "title", "summary", "confidence", "source", "data", "created_at").
		From("insights").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		RunWith(s.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()
	out := []insight.Fact{}
	for rows.Next() {
		var (
			f    insight.Fact
			data string
		)
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.Title, &f.Summary, &f.Confidence, &f.Source, &data, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Data = []byte(data)
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestFactTime is the creation time of the newest fact, or nil.
func (s *Store) LatestFactTime(ctx context.Context, workspaceID string) (*time.Time, error) {
	var ts time.Time
	err := s.sb.Select("created_at").From("insights").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("created_at DESC").
		Limit(1).
		RunWith(s.DB).QueryRowContext(ctx).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest insight: %w", err)
	}
	return &ts, nil
}
