package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// ErrNotFound is the cause of lookup failures.
var ErrNotFound = errors.New("record not found")

// SQLiteStore persists build core records in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens the database at dbPath and creates the schema.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		repo TEXT NOT NULL,
		repo_type TEXT NOT NULL,
		default_branch TEXT NOT NULL DEFAULT '',
		documentation_type TEXT NOT NULL,
		conf_path TEXT NOT NULL DEFAULT '',
		skip INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		slug TEXT NOT NULL,
		identifier TEXT NOT NULL,
		verbose_name TEXT NOT NULL,
		type TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		built INTEGER NOT NULL DEFAULT 0,
		UNIQUE(project_id, slug)
	);
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		version_id INTEGER NOT NULL REFERENCES versions(id),
		type TEXT NOT NULL,
		state TEXT NOT NULL,
		success INTEGER NOT NULL,
		vcs_commit TEXT NOT NULL DEFAULT '',
		exit_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_version ON builds(version_id);
	CREATE TABLE IF NOT EXISTS build_commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id INTEGER NOT NULL REFERENCES builds(id),
		command TEXT NOT NULL,
		cwd TEXT NOT NULL,
		output TEXT NOT NULL,
		error TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_build_commands_build ON build_commands(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func notFound(kind string, key any) error {
	return ferrors.WrapError(ErrNotFound, ferrors.CategoryNotFound, kind+" not found").
		WithContext(kind, key).
		Build()
}

func storeErr(op string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryStore, op).Build()
}

// CreateProject inserts p and sets its ID.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (slug, name, repo, repo_type, default_branch, documentation_type, conf_path, skip)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Name, p.Repo, p.RepoType, p.DefaultBranch, p.DocumentationType, p.ConfPath, p.Skip)
	if err != nil {
		return storeErr("insert project", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

const projectColumns = `id, slug, name, repo, repo_type, default_branch, documentation_type, conf_path, skip`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Repo, &p.RepoType, &p.DefaultBranch,
		&p.DocumentationType, &p.ConfPath, &p.Skip); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject returns the project with id.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, storeErr("query project", err)
	}
	return p, nil
}

// GetProjectBySlug returns the project with slug.
func (s *SQLiteStore) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", slug)
	}
	if err != nil {
		return nil, storeErr("query project", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by slug.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY slug`)
	if err != nil {
		return nil, storeErr("query projects", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, storeErr("scan project", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate projects", err)
	}
	return out, nil
}

const versionColumns = `id, project_id, slug, identifier, verbose_name, type, active, built`

func scanVersion(row interface{ Scan(...any) error }) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.ProjectID, &v.Slug, &v.Identifier, &v.VerboseName, &v.Type, &v.Active, &v.Built); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVersion inserts v and sets its ID.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO versions (project_id, slug, identifier, verbose_name, type, active, built) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ProjectID, v.Slug, v.Identifier, v.VerboseName, v.Type, v.Active, v.Built)
	if err != nil {
		return storeErr("insert version", err)
	}
	v.ID, err = res.LastInsertId()
	return err
}

// UpsertVersion inserts v, or updates identifier, verbose name and type of the
// existing version with the same project and slug. v.ID is set either way.
func (s *SQLiteStore) UpsertVersion(ctx context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO versions (project_id, slug, identifier, verbose_name, type, active, built) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, slug) DO UPDATE SET identifier = excluded.identifier, verbose_name = excluded.verbose_name, type = excluded.type
		 RETURNING id`,
		v.ProjectID, v.Slug, v.Identifier, v.VerboseName, v.Type, v.Active, v.Built).Scan(&v.ID)
	if err != nil {
		return storeErr("upsert version", err)
	}
	return nil
}

// UpdateVersion stores the mutable fields of v.
func (s *SQLiteStore) UpdateVersion(ctx context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE versions SET identifier = ?, verbose_name = ?, active = ?, built = ? WHERE id = ?`,
		v.Identifier, v.VerboseName, v.Active, v.Built, v.ID)
	if err != nil {
		return storeErr("update version", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("version", v.ID)
	}
	return nil
}

// GetVersion returns the version with id.
func (s *SQLiteStore) GetVersion(ctx context.Context, id int64) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := scanVersion(s.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("version", id)
	}
	if err != nil {
		return nil, storeErr("query version", err)
	}
	return v, nil
}

// GetVersionBySlug returns the version of projectID with slug.
func (s *SQLiteStore) GetVersionBySlug(ctx context.Context, projectID int64, slug string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE project_id = ? AND slug = ?`, projectID, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("version", slug)
	}
	if err != nil {
		return nil, storeErr("query version", err)
	}
	return v, nil
}

// ListVersions returns the versions of projectID ordered by slug.
func (s *SQLiteStore) ListVersions(ctx context.Context, projectID int64) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE project_id = ? ORDER BY slug`, projectID)
	if err != nil {
		return nil, storeErr("query versions", err)
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, storeErr("scan version", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate versions", err)
	}
	return out, nil
}

const buildColumns = `id, project_id, version_id, type, state, success, vcs_commit, exit_code, error, created_at, updated_at`

func scanBuild(row interface{ Scan(...any) error }) (*Build, error) {
	var b Build
	var created, updated int64
	if err := row.Scan(&b.ID, &b.ProjectID, &b.VersionID, &b.Type, &b.State, &b.Success,
		&b.Commit, &b.ExitCode, &b.Error, &created, &updated); err != nil {
		return nil, err
	}
	b.CreatedAt = time.Unix(0, created)
	b.UpdatedAt = time.Unix(0, updated)
	return &b, nil
}

// CreateBuild inserts b and sets its ID and timestamps.
func (s *SQLiteStore) CreateBuild(ctx context.Context, b *Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (project_id, version_id, type, state, success, vcs_commit, exit_code, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ProjectID, b.VersionID, b.Type, b.State, b.Success, b.Commit, b.ExitCode, b.Error, now.UnixNano(), now.UnixNano())
	if err != nil {
		return storeErr("insert build", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storeErr("insert build", err)
	}
	b.ID, b.CreatedAt, b.UpdatedAt = id, now, now
	return nil
}

// UpdateBuild stores the mutable fields of b and refreshes UpdatedAt.
func (s *SQLiteStore) UpdateBuild(ctx context.Context, b *Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE builds SET state = ?, success = ?, vcs_commit = ?, exit_code = ?, error = ?, updated_at = ? WHERE id = ?`,
		b.State, b.Success, b.Commit, b.ExitCode, b.Error, now.UnixNano(), b.ID)
	if err != nil {
		return storeErr("update build", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("build", b.ID)
	}
	b.UpdatedAt = now
	return nil
}

// GetBuild returns the build with id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id int64) (*Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := scanBuild(s.db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("build", id)
	}
	if err != nil {
		return nil, storeErr("query build", err)
	}
	return b, nil
}

// ListBuilds returns the builds of projectID, newest first.
func (s *SQLiteStore) ListBuilds(ctx context.Context, projectID int64) ([]*Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, storeErr("query builds", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, storeErr("scan build", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate builds", err)
	}
	return out, nil
}

// LastBuiltCommit returns the commit of the newest successful finished build of
// versionID, or "" when there is none.
func (s *SQLiteStore) LastBuiltCommit(ctx context.Context, versionID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var commit string
	err := s.db.QueryRowContext(ctx,
		`SELECT vcs_commit FROM builds WHERE version_id = ? AND state = ? AND success = 1 AND vcs_commit != ''
		 ORDER BY id DESC LIMIT 1`, versionID, StateFinished).Scan(&commit)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storeErr("query last commit", err)
	}
	return commit, nil
}

// PostCommand appends a command record to its build's history.
func (s *SQLiteStore) PostCommand(ctx context.Context, rec command.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_commands (build_id, command, cwd, output, error, exit_code, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.Command, rec.Dir, rec.Output, rec.Error, rec.ExitCode,
		rec.StartTime.UnixNano(), rec.EndTime.UnixNano())
	if err != nil {
		return storeErr("insert build command", err)
	}
	return nil
}

// ListCommands returns the commands recorded for buildID in execution order.
func (s *SQLiteStore) ListCommands(ctx context.Context, buildID int64) ([]*BuildCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, command, cwd, output, error, exit_code, start_time, end_time
		 FROM build_commands WHERE build_id = ? ORDER BY id`, buildID)
	if err != nil {
		return nil, storeErr("query build commands", err)
	}
	defer rows.Close()

	var out []*BuildCommand
	for rows.Next() {
		var c BuildCommand
		var start, end int64
		if err := rows.Scan(&c.ID, &c.BuildID, &c.Command, &c.Dir, &c.Output, &c.Error, &c.ExitCode, &start, &end); err != nil {
			return nil, storeErr("scan build command", err)
		}
		c.StartTime, c.EndTime = time.Unix(0, start), time.Unix(0, end)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate build commands", err)
	}
	return out, nil
}
