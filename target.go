package main

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported 目标数据库无法表达该参数组合，跳过
var ErrUnsupported = errors.New("combination not supported by target")

// Target 被测数据库，所有方法可被多个 worker 并发调用（Setup/Teardown 除外）
type Target interface {
	Name() string

	// Setup 清空并重建命名空间，每个参数组合调用一次
	Setup(ctx context.Context, p Params, op Op) error
	Insert(ctx context.Context, batch []Record) error
	Upsert(ctx context.Context, batch []Record) error
	// Teardown 删除命名空间
	Teardown(ctx context.Context) error
	Close() error
}

func write(ctx context.Context, t Target, op Op, batch []Record) error {
	if op == OpUpsert {
		return t.Upsert(ctx, batch)
	}
	return t.Insert(ctx, batch)
}

// populate 分批预先写入 rows 行，最后一批可能不满
func populate(ctx context.Context, t Target, p Params, rows, rowsPerBatch int) error {
	if rows <= 0 {
		return nil
	}
	if rowsPerBatch <= 0 {
		return fmt.Errorf("populate batch must be positive, got %d", rowsPerBatch)
	}

	shape := p
	shape.RowsPerBatch = rowsPerBatch
	g := NewGenerator(shape, 1, PayloadValue, 0)

	c := &Counters{}
	for c.Updates < rows {
		if left := rows - c.Updates; left < shape.RowsPerBatch {
			shape.RowsPerBatch = left
			g = NewGenerator(shape, 1, PayloadValue, 0)
		}
		if err := t.Insert(ctx, g.InsertBatch(c)); err != nil {
			return fmt.Errorf("populate %s, %w", t.Name(), err)
		}
	}
	return nil
}
