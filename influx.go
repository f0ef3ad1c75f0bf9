package main

import (
	"context"
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

const (
	influxDatabase    = "InfluxBenchmarks"
	influxMeasurement = "Measurement1"
)

// upsert 时同一行总是写到同一个时间点上，覆盖旧值
var influxUpsertEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// InfluxConfig InfluxDB 1.x 连接参数
type InfluxConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
}

// Influx InfluxDB 写入目标，索引字段写成 tag，其余写成 field
type Influx struct {
	client client.Client
}

// NewInflux 连接 InfluxDB
func NewInflux(conf InfluxConfig) (*Influx, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     conf.Addr,
		Username: conf.Username,
		Password: conf.Password,
		Timeout:  conf.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if _, _, err := c.Ping(conf.Timeout); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping influxdb, %w", err)
	}
	return &Influx{client: c}, nil
}

func (db *Influx) Name() string { return "influx" }

func (db *Influx) query(cmd string) error {
	resp, err := db.client.Query(client.NewQuery(cmd, "", ""))
	if err != nil {
		return err
	}
	return resp.Error()
}

// Setup point 至少要有一个 field，全部字段都是 tag 的组合不支持
func (db *Influx) Setup(_ context.Context, p Params, _ Op) error {
	if p.PlainValues() == 0 {
		return fmt.Errorf("%w: influx points need at least one field, %s", ErrUnsupported, p)
	}

	if err := db.query(fmt.Sprintf("DROP DATABASE %q", influxDatabase)); err != nil {
		return fmt.Errorf("drop database, %w", err)
	}
	if err := db.query(fmt.Sprintf("CREATE DATABASE %q", influxDatabase)); err != nil {
		return fmt.Errorf("create database, %w", err)
	}
	return nil
}

func (db *Influx) Insert(ctx context.Context, batch []Record) error {
	now := time.Now()
	return db.write(ctx, batch, func(i int, _ Record) time.Time {
		return now.Add(time.Duration(i))
	})
}

func (db *Influx) Upsert(ctx context.Context, batch []Record) error {
	return db.write(ctx, batch, func(_ int, r Record) time.Time {
		return influxUpsertEpoch.Add(time.Duration(r.Row) * time.Second)
	})
}

func (db *Influx) write(ctx context.Context, batch []Record, ts func(int, Record) time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	points, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  influxDatabase,
		Precision: "ns",
	})
	if err != nil {
		return err
	}

	for i, r := range batch {
		tags := make(map[string]string)
		fields := make(map[string]interface{}, len(r.Fields))
		for _, f := range r.Fields {
			if f.Indexed {
				tags[f.Key] = f.Value
			} else {
				fields[f.Key] = f.Value
			}
		}

		pt, err := client.NewPoint(influxMeasurement, tags, fields, ts(i, r))
		if err != nil {
			return err
		}
		points.AddPoint(pt)
	}

	return db.client.Write(points)
}

func (db *Influx) Teardown(_ context.Context) error {
	return db.query(fmt.Sprintf("DROP DATABASE %q", influxDatabase))
}

func (db *Influx) Close() error {
	return db.client.Close()
}
