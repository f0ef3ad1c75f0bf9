package main

import (
	"errors"
	"fmt"
	"math"
)

// Op 写入方式
type Op string

const (
	OpInsert Op = "insert"
	OpUpsert Op = "upsert"
)

func parseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpInsert, OpUpsert:
		return op, nil
	}
	return "", fmt.Errorf("unknown op %q, want insert or upsert", s)
}

// ErrNoIndexedValues upsert 以索引字段定位行，至少需要一个索引字段
var ErrNoIndexedValues = errors.New("upsert needs at least one indexed value")

// Params 一组测试参数
type Params struct {
	RowsPerBatch int
	ValuesPerRow int
	IndexedPct   float64
	Threads      int
}

// IndexedValues 每行的索引字段数量
//
//	ceil(valuesPerRow * indexedPct / 100)
func (p Params) IndexedValues() int {
	return indexedValues(p.ValuesPerRow, p.IndexedPct)
}

func indexedValues(valuesPerRow int, pct float64) int {
	n := int(math.Ceil(float64(valuesPerRow) * pct / 100.0))
	if n > valuesPerRow {
		n = valuesPerRow
	}
	return n
}

// PlainValues 每行的普通字段数量
func (p Params) PlainValues() int {
	return p.ValuesPerRow - p.IndexedValues()
}

func (p Params) Validate(op Op) error {
	if p.RowsPerBatch < 1 {
		return fmt.Errorf("rows per batch must be positive, got %d", p.RowsPerBatch)
	}
	if p.ValuesPerRow < 1 {
		return fmt.Errorf("values per row must be positive, got %d", p.ValuesPerRow)
	}
	if p.IndexedPct < 0 || p.IndexedPct > 100 {
		return fmt.Errorf("indexed percent must be 0 ~ 100, got %g", p.IndexedPct)
	}
	if p.Threads < 1 {
		return fmt.Errorf("threads must be positive, got %d", p.Threads)
	}
	if op == OpUpsert && p.IndexedValues() == 0 {
		return ErrNoIndexedValues
	}
	return nil
}

// String is also used as the sub-benchmark name.
func (p Params) String() string {
	return fmt.Sprintf("rows=%d/values=%d/indexed=%g%%/threads=%d",
		p.RowsPerBatch, p.ValuesPerRow, p.IndexedPct, p.Threads)
}

// Matrix 参数矩阵
type Matrix struct {
	RowsPerBatch []int
	ValuesPerRow []int
	IndexedPct   []float64
	Threads      []int
}

// Combinations 按 rows, values, indexed, threads 顺序展开全部参数组合
func (m Matrix) Combinations() []Params {
	result := make([]Params, 0, len(m.RowsPerBatch)*len(m.ValuesPerRow)*len(m.IndexedPct)*len(m.Threads))
	for _, rows := range m.RowsPerBatch {
		for _, values := range m.ValuesPerRow {
			for _, pct := range m.IndexedPct {
				for _, threads := range m.Threads {
					result = append(result, Params{
						RowsPerBatch: rows,
						ValuesPerRow: values,
						IndexedPct:   pct,
						Threads:      threads,
					})
				}
			}
		}
	}
	return result
}
