package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
)

// Version dbbench 版本
const Version = "0.3.0"

var (
	rootCmd = &cobra.Command{
		Use:   "dbbench",
		Short: "write/upsert throughput benchmarks",
		Long: fmt.Sprintf(`dbbench (v%s)

Measures bulk insert and upsert throughput of MongoDB, InfluxDB,
PostgreSQL and SQLite over a matrix of rows per batch, values per row,
indexed value percentage and worker threads.`, Version),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbbench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbbench v%s\n", Version)
		},
	}

	mongoCmd = &cobra.Command{
		Use:     "mongo",
		Short:   "Benchmark MongoDB insertMany / bulk replace upserts",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := NewMongo(cmd.Context(), viper.GetString("mongo-uri"))
			if err != nil {
				return fmt.Errorf("connect mongodb, %w", err)
			}
			return runBenchmark(cmd.Context(), target)
		},
	}

	influxCmd = &cobra.Command{
		Use:     "influx",
		Short:   "Benchmark InfluxDB 1.x batch point writes",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := NewInflux(InfluxConfig{
				Addr:     viper.GetString("influx-addr"),
				Username: viper.GetString("influx-user"),
				Password: viper.GetString("influx-password"),
				Timeout:  viper.GetDuration("influx-timeout"),
			})
			if err != nil {
				return fmt.Errorf("connect influxdb, %w", err)
			}
			return runBenchmark(cmd.Context(), target)
		},
	}

	pgsqlCmd = &cobra.Command{
		Use:     "pgsql",
		Short:   "Benchmark PostgreSQL multi-row inserts / ON CONFLICT upserts",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := NewPGSQL(viper.GetString("pgsql-driver"), viper.GetString("pgsql-dsn"))
			if err != nil {
				return fmt.Errorf("connect postgresql, %w", err)
			}
			return runBenchmark(cmd.Context(), target)
		},
	}

	sqliteCmd = &cobra.Command{
		Use:     "sqlite",
		Short:   "Benchmark SQLite multi-row inserts / ON CONFLICT upserts",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pragma := DefaultPragma()
			pragma.JournalMode = viper.GetString("sqlite-journal-mode")
			pragma.WithMutex = viper.GetBool("sqlite-mutex")

			target, err := NewSQLite(viper.GetString("sqlite-driver"), viper.GetString("sqlite-dir"), pragma)
			if err != nil {
				return fmt.Errorf("open sqlite, %w", err)
			}
			slog.Info("sqlite database", slog.String("dsn", target.DSN()))
			return runBenchmark(cmd.Context(), target)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("rows", "1,100,1000", "rows per batch, comma separated")
	flags.String("values", "1,10,100", "values per row, comma separated")
	flags.String("threads", "1,2,4,8", "worker threads, comma separated")
	flags.String("op", string(OpInsert), "write operation (insert, upsert)")
	flags.Int("warmup", 5, "warmup iterations per combination")
	flags.Int("iterations", 5, "measurement iterations per combination")
	flags.Duration("iteration-time", 10*time.Second, "duration of one iteration")
	flags.Int("key-space", 1000000, "number of distinct rows upserts pick from")
	flags.Int("populate-rows", 0, "rows to pre-load before measuring")
	flags.Int("populate-batch", 1000, "rows per batch while pre-loading")
	flags.String("payload", string(PayloadValue), "plain field values (value, faker)")
	flags.String("json", "", "optional path to save results as JSON")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9100")

	mongoCmd.Flags().String("indexed-pct", "1,10,50", "indexed values percentage, comma separated")
	mongoCmd.Flags().String("mongo-uri", "mongodb://localhost:27017", "mongodb connection uri")

	influxCmd.Flags().String("indexed-pct", "0,1,10", "indexed values (tags) percentage, comma separated")
	influxCmd.Flags().String("influx-addr", "http://localhost:8086", "influxdb http address")
	influxCmd.Flags().String("influx-user", "root", "influxdb user")
	influxCmd.Flags().String("influx-password", "root", "influxdb password")
	influxCmd.Flags().Duration("influx-timeout", 30*time.Second, "influxdb http timeout")

	pgsqlCmd.Flags().String("indexed-pct", "0,10,50", "indexed columns percentage, comma separated")
	pgsqlCmd.Flags().String("pgsql-dsn", "postgres://bench@localhost:5432/bench?sslmode=disable", "postgresql dsn")
	pgsqlCmd.Flags().String("pgsql-driver", "pgx", "postgresql driver (pgx, postgres)")

	sqliteCmd.Flags().String("indexed-pct", "0,10,50", "indexed columns percentage, comma separated")
	sqliteCmd.Flags().String("sqlite-driver", "sqlite3", "sqlite driver (sqlite3 = mattn, sqlite = modernc)")
	sqliteCmd.Flags().String("sqlite-dir", "", "directory for the temporary database, default system temp dir")
	sqliteCmd.Flags().String("sqlite-journal-mode", "WAL", "sqlite journal_mode pragma")
	sqliteCmd.Flags().Bool("sqlite-mutex", false, "serialize writes with a process level mutex")

	rootCmd.AddCommand(mongoCmd, influxCmd, pgsqlCmd, sqliteCmd, versionCmd)
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// runBenchmark 跑完整个参数矩阵，结束时关闭 target
func runBenchmark(ctx context.Context, target Target) error {
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			slog.Warn("close target", slog.String("target", target.Name()), slog.Any("err", closeErr))
		}
	}()

	conf, err := loadConfig()
	if err != nil {
		return err
	}

	if conf.MetricsAddr != "" {
		shutdown, err := serveMetrics(conf.MetricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	runner := NewRunner(target, conf.Options)
	fmt.Printf("%s benchmark, run %s\n", target.Name(), runner.RunID())
	fmt.Println(conf)

	var (
		results []*Result
		order   []Params
		byParam = make(map[Params][]*Result)
	)
	runErr := runner.Run(ctx, conf.Matrix.Combinations(), func(res *Result) {
		fmt.Println(res)
		results = append(results, res)
		if _, ok := byParam[res.Params]; !ok {
			order = append(order, res.Params)
		}
		byParam[res.Params] = append(byParam[res.Params], res)
	})

	report := &Report{RunID: runner.RunID(), Results: results}
	fmt.Println("")
	for _, p := range order {
		if s := summarize(byParam[p]); s != nil {
			fmt.Println(s)
			report.Summaries = append(report.Summaries, s)
		}
	}

	if conf.JSONPath != "" {
		if err := writeReport(conf.JSONPath, report); err != nil {
			return err
		}
	}
	return runErr
}
