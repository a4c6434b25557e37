package store

import (
	"strings"

	"github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/arakoodev/k8s-cli-agents/internal/config"
)

// Migrate runs every pending migration in cfg.Migrations against Postgres, using
// go-pg/migrations the same way teacher's internal/db/migrations.go does (a
// go-pg/pg connection dedicated to running migrations, separate from the sqlx/pgx
// pool used to serve queries). Unlike teacher, there is no legacy schema to
// upgrade from, so this skips teacher's gopg_migrations/schema_migrations
// reconciliation step entirely.
func Migrate(cfg config.DBConfig) error {
	opts := &pg.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
	}
	db := pg.Connect(opts)
	defer db.Close()

	dir := strings.TrimPrefix(cfg.Migrations, "file://")

	collection := migrations.NewCollection()
	if err := collection.DiscoverSQLMigrations(dir); err != nil {
		return errors.Wrapf(err, "error discovering migrations in %s", dir)
	}

	oldVersion, newVersion, err := collection.Run(db, "up")
	if err != nil {
		return errors.Wrap(err, "error running migrations")
	}
	if oldVersion == newVersion {
		log.Infof("schema is up to date at version %d", newVersion)
	} else {
		log.Infof("migrated schema from version %d to %d", oldVersion, newVersion)
	}
	return nil
}
