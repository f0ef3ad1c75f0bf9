package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 一次命令行运行的全部配置
type Config struct {
	Matrix      Matrix
	Options     Options
	JSONPath    string
	MetricsAddr string
}

// initConfig 读取 .env 并绑定 DBBENCH_ 前缀的环境变量
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dbbench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func loadConfig() (*Config, error) {
	var (
		conf Config
		err  error
	)

	if conf.Matrix.RowsPerBatch, err = parseIntList(viper.GetString("rows")); err != nil {
		return nil, fmt.Errorf("rows, %w", err)
	}
	if conf.Matrix.ValuesPerRow, err = parseIntList(viper.GetString("values")); err != nil {
		return nil, fmt.Errorf("values, %w", err)
	}
	if conf.Matrix.IndexedPct, err = parseFloatList(viper.GetString("indexed-pct")); err != nil {
		return nil, fmt.Errorf("indexed-pct, %w", err)
	}
	if conf.Matrix.Threads, err = parseIntList(viper.GetString("threads")); err != nil {
		return nil, fmt.Errorf("threads, %w", err)
	}

	if conf.Options.Op, err = parseOp(viper.GetString("op")); err != nil {
		return nil, err
	}
	if conf.Options.Payload, err = parsePayload(viper.GetString("payload")); err != nil {
		return nil, err
	}
	conf.Options.Warmup = viper.GetInt("warmup")
	conf.Options.Iterations = viper.GetInt("iterations")
	conf.Options.IterationTime = viper.GetDuration("iteration-time")
	conf.Options.KeySpace = viper.GetInt("key-space")
	conf.Options.PopulateRows = viper.GetInt("populate-rows")
	conf.Options.PopulateBatch = viper.GetInt("populate-batch")

	if conf.Options.IterationTime <= 0 {
		return nil, fmt.Errorf("iteration-time must be positive, got %s", conf.Options.IterationTime)
	}
	if conf.Options.KeySpace < 1 {
		return nil, fmt.Errorf("key-space must be positive, got %d", conf.Options.KeySpace)
	}

	conf.JSONPath = viper.GetString("json")
	conf.MetricsAddr = viper.GetString("metrics-addr")
	return &conf, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("op: %s, rows: %v, values: %v, indexed pct: %v, threads: %v, warmup: %d, iterations: %d x %s, payload: %s",
		c.Options.Op, c.Matrix.RowsPerBatch, c.Matrix.ValuesPerRow, c.Matrix.IndexedPct, c.Matrix.Threads,
		c.Options.Warmup, c.Options.Iterations, c.Options.IterationTime, c.Options.Payload)
}

func splitList(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}

// parseIntList "1,100,1000"
func parseIntList(s string) ([]int, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty list")
	}

	result := make([]int, len(parts))
	for i, v := range parts {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty list")
	}

	result := make([]float64, len(parts))
	for i, v := range parts {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}
