package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nikbrunner/favmark/internal/model"
)

const currentSchemaVersion = 2

// SQLiteStorage implements Storage using a SQLite database.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLiteStorage with the given database path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &SQLiteStorage{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	return version, err
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	version, err := s.SchemaVersion()
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the initial schema.
func (s *SQLiteStorage) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('folder', 'entry')),
			name TEXT NOT NULL,
			url TEXT,
			parent_id TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			locked INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, position);
		CREATE INDEX IF NOT EXISTS idx_nodes_url ON nodes(url) WHERE url IS NOT NULL;

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds icon references and visit timestamps.
func (s *SQLiteStorage) migrateV2() error {
	migration := `
		ALTER TABLE nodes ADD COLUMN icon_site_key TEXT;
		ALTER TABLE nodes ADD COLUMN icon_fetched_at TEXT;
		ALTER TABLE nodes ADD COLUMN visited_at TEXT;
		UPDATE schema_version SET version = 2;
	`
	_, err := s.db.Exec(migration)
	return err
}

// Load reads the tree from the SQLite database.
// An empty database yields an empty tree.
func (s *SQLiteStorage) Load() (*model.Tree, error) {
	var rootID string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'root_id'").Scan(&rootID)
	if err == sql.ErrNoRows {
		return model.NewTree(), nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, type, name, url, parent_id, created_at, locked,
		       icon_site_key, icon_fetched_at, visited_at
		FROM nodes
		ORDER BY parent_id, position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := Document{Version: DocumentVersion, RootID: rootID}
	index := map[string]int{}
	var order [][2]string // child, parent

	for rows.Next() {
		var n Node
		var url, parentID, iconKey, iconAt, visitedAt sql.NullString
		var createdAt string
		var locked int

		if err := rows.Scan(
			&n.ID, &n.Type, &n.Name, &url, &parentID, &createdAt, &locked,
			&iconKey, &iconAt, &visitedAt,
		); err != nil {
			return nil, err
		}

		n.URL = url.String
		n.Parent = parentID.String
		n.Locked = locked == 1
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		if iconKey.Valid {
			ref := &model.IconRef{SiteKey: iconKey.String}
			ref.FetchedAt, _ = time.Parse(time.RFC3339Nano, iconAt.String)
			n.Icon = ref
		}
		if visitedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, visitedAt.String)
			if err == nil {
				n.VisitedAt = &t
			}
		}

		index[n.ID] = len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, n)
		if parentID.Valid {
			order = append(order, [2]string{n.ID, parentID.String})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows arrive grouped by parent in position order
	for _, pair := range order {
		i, ok := index[pair[1]]
		if !ok {
			return nil, fmt.Errorf("%w: node %q has unknown parent %q", model.ErrCorruptData, pair[0], pair[1])
		}
		doc.Nodes[i].Children = append(doc.Nodes[i].Children, pair[0])
	}

	return Decode(doc)
}

// Save writes the tree to the SQLite database.
// Uses a transaction for atomicity - all or nothing.
func (s *SQLiteStorage) Save(t *model.Tree) error {
	doc := Encode(t)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Clear existing data
	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('root_id', ?)", doc.RootID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO nodes (id, type, name, url, parent_id, position, created_at, locked,
		                   icon_site_key, icon_fetched_at, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	positions := map[string]int{}
	for _, n := range doc.Nodes {
		for i, child := range n.Children {
			positions[child] = i
		}
	}

	for _, n := range doc.Nodes {
		var url, parentID, iconKey, iconAt, visitedAt *string
		if n.Type == model.KindEntry {
			url = &n.URL
		}
		if n.Parent != "" {
			parentID = &n.Parent
		}
		if n.Icon != nil {
			key := n.Icon.SiteKey
			at := n.Icon.FetchedAt.Format(time.RFC3339Nano)
			iconKey, iconAt = &key, &at
		}
		if n.VisitedAt != nil {
			v := n.VisitedAt.Format(time.RFC3339Nano)
			visitedAt = &v
		}

		locked := 0
		if n.Locked {
			locked = 1
		}

		if _, err := stmt.Exec(
			n.ID, string(n.Type), n.Name, url, parentID, positions[n.ID],
			n.CreatedAt.Format(time.RFC3339Nano), locked, iconKey, iconAt, visitedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
