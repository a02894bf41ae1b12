package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const (
	migrationsDir = "sqlite/migrations"

	// bootstrapVersion creates schema_migrations and is the only migration
	// allowed to run against a ledger that has none.
	bootstrapVersion = "000"
)

// ledgerMigration is one embedded schema step of the run ledger,
// parsed from a file named <version>_<name>.sql.
type ledgerMigration struct {
	Version string
	Name    string
	File    string
}

func parseMigrationFile(file string) (ledgerMigration, error) {
	base, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return ledgerMigration{}, errors.Newf("ledger migration %q is not a .sql file", file)
	}
	version, name, ok := strings.Cut(base, "_")
	if !ok || version == "" || name == "" {
		return ledgerMigration{}, errors.Newf("ledger migration %q is not named <version>_<name>.sql", file)
	}
	return ledgerMigration{Version: version, Name: name, File: file}, nil
}

// loadLedgerMigrations returns the embedded migrations in version order.
func loadLedgerMigrations() ([]ledgerMigration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read ledger migrations")
	}

	var out []ledgerMigration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, err := parseMigrationFile(entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// appliedVersions reads schema_migrations. A missing table yields an empty
// set and bootstrapped=false.
func appliedVersions(db *sql.DB) (applied map[string]bool, bootstrapped bool, err error) {
	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'").Scan(&n)
	if err != nil {
		return nil, false, errors.Wrap(err, "inspect run ledger schema")
	}
	applied = make(map[string]bool)
	if n == 0 {
		return applied, false, nil
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, true, errors.Wrap(err, "read applied ledger migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, true, errors.Wrap(err, "scan applied ledger migration")
		}
		applied[v] = true
	}
	return applied, true, rows.Err()
}

func (m ledgerMigration) apply(db *sql.DB) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.File))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.File)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.File)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.File)
	}
	// The bootstrap migration records itself in the table it just created
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return errors.Wrapf(err, "record %s", m.File)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.File)
}

// Migrate brings the run ledger schema up to the newest embedded migration.
// log may be nil.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	pending, err := loadLedgerMigrations()
	if err != nil {
		return err
	}
	applied, bootstrapped, err := appliedVersions(db)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range pending {
		if applied[m.Version] {
			continue
		}
		if !bootstrapped && m.Version != bootstrapVersion {
			return errors.Newf("run ledger has no schema_migrations table before %s", m.File)
		}

		log.Infow("Applying ledger migration",
			logger.FieldMigration, m.Name,
			logger.FieldSchemaVersion, m.Version,
			logger.FieldFile, m.File,
		)
		if err := m.apply(db); err != nil {
			return err
		}
		bootstrapped = true
		count++
	}

	if count > 0 {
		log.Infow("Run ledger schema up to date",
			logger.FieldSchemaVersion, pending[len(pending)-1].Version,
			logger.FieldCount, count,
			logger.FieldTotalCount, len(pending),
		)
	}
	return nil
}
