package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
)

const sqlTableName = "bench_rows"

// sqlSchema 单表结构: key0..keyN TEXT
//
// insert 时每个索引列一个普通索引；upsert 时索引列上建一个联合唯一索引作为冲突目标
type sqlSchema struct {
	dialect goqu.DialectWrapper
	columns []string
	indexed int
	upsert  bool
}

func newSQLSchema(dialect string, p Params, op Op) sqlSchema {
	return sqlSchema{
		dialect: goqu.Dialect(dialect),
		columns: fieldKeys(p.ValuesPerRow),
		indexed: p.IndexedValues(),
		upsert:  op == OpUpsert,
	}
}

func (s sqlSchema) ddl() []string {
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = c + " TEXT"
	}

	ddl := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, sqlTableName),
		fmt.Sprintf(`CREATE TABLE %s (%s)`, sqlTableName, strings.Join(cols, ", ")),
	}

	if s.indexed == 0 {
		return ddl
	}
	if s.upsert {
		return append(ddl, fmt.Sprintf(`CREATE UNIQUE INDEX %s_upsert_idx ON %s (%s)`,
			sqlTableName, sqlTableName, strings.Join(s.columns[:s.indexed], ", ")))
	}
	for _, c := range s.columns[:s.indexed] {
		ddl = append(ddl, fmt.Sprintf(`CREATE INDEX %s_%s_idx ON %s (%s)`, sqlTableName, c, sqlTableName, c))
	}
	return ddl
}

func (s sqlSchema) insertDataset(batch []Record) *goqu.InsertDataset {
	cols := make([]interface{}, len(s.columns))
	for i, c := range s.columns {
		cols[i] = c
	}

	vals := make([][]interface{}, len(batch))
	for i, r := range batch {
		row := make([]interface{}, len(r.Fields))
		for j, f := range r.Fields {
			row[j] = f.Value
		}
		vals[i] = row
	}

	// 不用 Prepared：1000 行 x 100 列超过 postgres 的绑定参数上限
	return s.dialect.Insert(sqlTableName).Cols(cols...).Vals(vals...)
}

func (s sqlSchema) insertSQL(batch []Record) (string, error) {
	query, _, err := s.insertDataset(batch).ToSQL()
	return query, err
}

func (s sqlSchema) upsertSQL(batch []Record) (string, error) {
	if s.indexed == 0 {
		return "", ErrNoIndexedValues
	}

	var conflict exp.ConflictExpression
	if plain := s.columns[s.indexed:]; len(plain) == 0 {
		conflict = goqu.DoNothing()
	} else {
		set := goqu.Record{}
		for _, c := range plain {
			set[c] = goqu.I("excluded." + c)
		}
		conflict = goqu.DoUpdate(strings.Join(s.columns[:s.indexed], ","), set)
	}

	query, _, err := s.insertDataset(batch).OnConflict(conflict).ToSQL()
	return query, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlTarget postgres / sqlite 共用的写入实现
type sqlTarget struct {
	name    string
	dialect string
	db      execer
	close   func() error

	schema sqlSchema
}

func (t *sqlTarget) Name() string { return t.name }

func (t *sqlTarget) Setup(ctx context.Context, p Params, op Op) error {
	t.schema = newSQLSchema(t.dialect, p, op)

	for _, cmd := range t.schema.ddl() {
		if _, err := t.db.ExecContext(ctx, cmd); err != nil {
			return fmt.Errorf("%s, %w", cmd, err)
		}
	}
	return nil
}

func (t *sqlTarget) Insert(ctx context.Context, batch []Record) error {
	query, err := t.schema.insertSQL(batch)
	if err != nil {
		return fmt.Errorf("build insert, %w", err)
	}

	_, err = t.db.ExecContext(ctx, query)
	return err
}

func (t *sqlTarget) Upsert(ctx context.Context, batch []Record) error {
	query, err := t.schema.upsertSQL(batch)
	if err != nil {
		return fmt.Errorf("build upsert, %w", err)
	}

	_, err = t.db.ExecContext(ctx, query)
	return err
}

func (t *sqlTarget) Teardown(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, sqlTableName))
	return err
}

func (t *sqlTarget) Close() error {
	return t.close()
}
