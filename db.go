package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	"golang.org/x/exp/slog"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Pragma sqlite数据库配置
//
// https://www.sqlite.org/pragma.html
type Pragma struct {
	WithMutex bool

	BusyTimeout       int
	Cache             string
	CacheSize         int
	FullSync          bool
	JournalMode       string
	MmapSize          int
	Synchronous       string
	TempStore         string
	WALAutoCheckpoint int
}

func (p Pragma) encode(driver string) string {
	switch driver {
	case "sqlite3":
		return p.encodeMattn()
	case "sqlite":
		return p.encodeModernc()
	}
	return ""
}

// DefaultPragma 多个 worker 并发写同一个文件时的默认配置
func DefaultPragma() Pragma {
	return Pragma{
		BusyTimeout: 5000,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
	}
}

type pragmaValue struct {
	name  string
	value string
}

// values 已设置的 pragma，顺序固定
func (p Pragma) values() []pragmaValue {
	var result []pragmaValue
	add := func(name, value string) {
		result = append(result, pragmaValue{name: name, value: value})
	}

	if v := p.JournalMode; v != "" {
		add("journal_mode", v)
	}
	if v := p.Synchronous; v != "" {
		add("synchronous", v)
	}
	if v := p.CacheSize; v != 0 {
		add("cache_size", strconv.Itoa(v))
	}
	if v := p.BusyTimeout; v != 0 {
		add("busy_timeout", strconv.Itoa(v))
	}
	if p.FullSync {
		add("fullsync", "1")
	}
	if v := p.TempStore; v != "" {
		add("temp_store", v)
	}
	if v := p.MmapSize; v != 0 {
		add("mmap_size", strconv.Itoa(v))
	}
	if v := p.WALAutoCheckpoint; v != 0 {
		add("wal_autocheckpoint", strconv.Itoa(v))
	}
	return result
}

// encodeMattn _journal_mode=WAL&_busy_timeout=5000
func (p Pragma) encodeMattn() string {
	val := url.Values{}
	for _, v := range p.values() {
		val.Set("_"+v.name, v.value)
	}
	if v := p.Cache; v != "" {
		val.Set("cache", v)
	}

	result, _ := url.QueryUnescape(val.Encode())
	return result
}

// encodeModernc _pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)
func (p Pragma) encodeModernc() string {
	val := url.Values{}
	for _, v := range p.values() {
		val.Add("_pragma", fmt.Sprintf("%s(%s)", v.name, v.value))
	}
	if v := p.Cache; v != "" {
		val.Set("cache", v)
	}

	result, _ := url.QueryUnescape(val.Encode())
	return result
}

// DB 数据库连接
type DB struct {
	*sync.RWMutex
	*sqlx.DB

	withMutex bool
	dsn       string
}

// NewDB 创建数据库连接
//
//	dirver=sqlite3 use github.com/mattn/go-sqlite3
//	driver=sqlite use modernc.org/sqlite
func NewDB(driver, file string, pragma Pragma) (*DB, error) {
	dsn := fmt.Sprintf("%s?%s", file, pragma.encode(driver))

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}
	slog.Debug("connect database", slog.String("dsn", dsn), slog.String("driver", driver))

	return &DB{
		RWMutex:   &sync.RWMutex{},
		DB:        db.Unsafe(),
		withMutex: pragma.WithMutex,
		dsn:       dsn,
	}, nil
}

// GetContext 查询单条
func (db *DB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if db.withMutex {
		db.RLock()
		defer db.RUnlock()
	}

	return db.DB.GetContext(ctx, dest, query, args...)
}

// ExecContext 执行
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if db.withMutex {
		db.Lock()
		defer db.Unlock()
	}

	return db.DB.ExecContext(ctx, query, args...)
}
