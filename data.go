package main

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"github.com/go-faker/faker/v4"
)

// Field 键值对，Indexed 表示写成 tag / 索引字段 / 索引列
type Field struct {
	Key     string
	Value   string
	Indexed bool
}

// Record 一行合成数据，索引字段总在前面
type Record struct {
	// Row insert 时是生成该行时的计数器，upsert 时是目标行号
	Row    int
	Fields []Field
}

// Counters 每个 worker 自己的写入计数
type Counters struct {
	Updates       int
	UpdatedValues int
}

// Payload 普通字段的内容来源
type Payload string

const (
	PayloadValue Payload = "value"
	PayloadFaker Payload = "faker"
)

func parsePayload(s string) (Payload, error) {
	switch p := Payload(s); p {
	case PayloadValue, PayloadFaker:
		return p, nil
	}
	return "", fmt.Errorf("unknown payload %q, want value or faker", s)
}

type sentence struct {
	Text string `faker:"sentence"`
}

var (
	sentences     []string
	sentencesOnce sync.Once
)

func fakeSentences() []string {
	sentencesOnce.Do(func() {
		sentences = make([]string, 0, 1000)
		for i := 0; i < 1000; i++ {
			s := &sentence{}
			if err := faker.FakeData(s); err != nil {
				panic(err)
			}
			sentences = append(sentences, s.Text)
		}
	})
	return sentences
}

// Generator 按参数构造批量数据，每个 worker 一个，不能并发使用
type Generator struct {
	params   Params
	indexed  int
	keySpace int
	payload  Payload
	rand     *rand.Rand
	keys     []string
	pool     []string
}

// NewGenerator keySpace 是 upsert 随机选行的范围 [0, keySpace)
func NewGenerator(p Params, keySpace int, payload Payload, seed int64) *Generator {
	g := &Generator{
		params:   p,
		indexed:  p.IndexedValues(),
		keySpace: keySpace,
		payload:  payload,
		rand:     rand.New(rand.NewSource(seed)),
		keys:     fieldKeys(p.ValuesPerRow),
	}
	if payload == PayloadFaker {
		g.pool = fakeSentences()
	}
	return g
}

func fieldKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = "key" + strconv.Itoa(i)
	}
	return keys
}

func (g *Generator) plainValue(fallback string) string {
	if g.pool == nil {
		return fallback
	}
	return g.pool[g.rand.Intn(len(g.pool))]
}

// InsertBatch 生成 RowsPerBatch 行，每个字段的值都是 "value"+计数器
func (g *Generator) InsertBatch(c *Counters) []Record {
	batch := make([]Record, 0, g.params.RowsPerBatch)

	for i := 0; i < g.params.RowsPerBatch; i++ {
		value := "value" + strconv.Itoa(c.Updates)

		fields := make([]Field, g.params.ValuesPerRow)
		for j := range fields {
			f := Field{Key: g.keys[j], Value: value, Indexed: j < g.indexed}
			if !f.Indexed {
				f.Value = g.plainValue(value)
			}
			fields[j] = f
			c.UpdatedValues++
		}

		batch = append(batch, Record{Row: c.Updates, Fields: fields})
		c.Updates++
	}
	return batch
}

// UpsertBatch 在 key space 内随机选不重复的行，按行号升序返回
//
// 索引字段的值是 "value"+行号，普通字段是 "value"+字段序号
func (g *Generator) UpsertBatch(c *Counters) []Record {
	rows := g.pickRows(g.params.RowsPerBatch)
	batch := make([]Record, 0, len(rows))

	for _, row := range rows {
		indexedValue := "value" + strconv.Itoa(row)

		fields := make([]Field, g.params.ValuesPerRow)
		for j := range fields {
			if j < g.indexed {
				fields[j] = Field{Key: g.keys[j], Value: indexedValue, Indexed: true}
			} else {
				fields[j] = Field{Key: g.keys[j], Value: g.plainValue("value" + strconv.Itoa(j))}
			}
			c.UpdatedValues++
		}

		batch = append(batch, Record{Row: row, Fields: fields})
		c.Updates++
	}
	return batch
}

func (g *Generator) pickRows(n int) []int {
	if n > g.keySpace {
		n = g.keySpace
	}

	seen := make(map[int]struct{}, n)
	rows := make([]int, 0, n)
	for len(rows) < n {
		row := g.rand.Intn(g.keySpace)
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

// Batch 按 op 生成一批数据
func (g *Generator) Batch(op Op, c *Counters) []Record {
	if op == OpUpsert {
		return g.UpsertBatch(c)
	}
	return g.InsertBatch(c)
}
