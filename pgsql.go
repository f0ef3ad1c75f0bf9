package main

import (
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPGSQL 连接 postgresql
//
//	driver=pgx use github.com/jackc/pgx/v4/stdlib
//	driver=postgres use github.com/lib/pq
func NewPGSQL(driver, dsn string) (Target, error) {
	switch driver {
	case "pgx", "postgres":
	default:
		return nil, fmt.Errorf("unknown postgresql driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}

	return &sqlTarget{
		name:    "pgsql",
		dialect: "postgres",
		db:      db,
		close:   db.Close,
	}, nil
}
