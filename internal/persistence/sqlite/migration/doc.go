// Package migration applies versioned SQL schema changes to the SQLite store.
//
// Migration files are read from an fs.FS (usually an embedded directory) and must be
// named {version}_{description}.sql, e.g. "003_bookings.sql". Each file runs in its
// own transaction and is recorded in the schema_migrations table so it is applied at
// most once. Statements are split on semicolons, except inside CREATE TRIGGER bodies
// which are kept whole until their closing END.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig(path))
//	manager := migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(db), files, "migrations", logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
