package pg

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

// Migrate runs a goose command ("up", "down" or "status") against dir.
func Migrate(cfg Config, dir, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	switch command {
	case "", "up":
		err = goose.Up(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	default:
		return errors.Errorf("unknown migration command %q", command)
	}
	return errors.Wrapf(err, "goose %s", command)
}
