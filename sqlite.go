package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SQLite 临时目录里的 sqlite 数据库，Close 时删除整个目录
type SQLite struct {
	*sqlTarget

	db   *DB
	path string
}

// NewSQLite 在 dir 下创建临时数据库，dir 为空时使用系统临时目录
func NewSQLite(driver, dir string, pragma Pragma) (s *SQLite, err error) {
	switch driver {
	case "sqlite", "sqlite3":
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	path, err := os.MkdirTemp(dir, "sqlite-*")
	if err != nil {
		return nil, fmt.Errorf("make temp dir, %w", err)
	}

	defer func() {
		if err != nil {
			if removeErr := os.RemoveAll(path); removeErr != nil {
				err = errors.Join(err, removeErr)
			}
		}
	}()

	db, err := NewDB(driver, filepath.Join(path, "bench.db"), pragma)
	if err != nil {
		return nil, fmt.Errorf("connect database, %w", err)
	}

	s = &SQLite{db: db, path: path}
	s.sqlTarget = &sqlTarget{
		name:    "sqlite",
		dialect: "sqlite3",
		db:      db,
		close:   s.cleanup,
	}
	return s, nil
}

func (s *SQLite) cleanup() error {
	return errors.Join(s.db.Close(), os.RemoveAll(s.path))
}

// DSN 连接串，输出结果时使用
func (s *SQLite) DSN() string {
	return fmt.Sprintf("%s:%s", s.db.DriverName(), s.db.dsn)
}
