package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pinokio-social/pinokio/credibility/engine"
	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/credibility/monitor"
	"github.com/pinokio-social/pinokio/models"
	"github.com/pinokio-social/pinokio/util"
	"github.com/pinokio-social/pinokio/util/cliutil"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "pinokio",
		Usage:   "post credibility scoring and review-bombing detection service",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite or postgres)",
			Value:   "sqlite://data/pinokio/pinokio.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"PINOKIO_MAX_DB_CONNECTIONS", "MAX_METADB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection string; shares moderation mode, counters and cache between instances",
			EnvVars: []string{"PINOKIO_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for moderation mode notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"PINOKIO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (json or text)",
			EnvVars: []string{"PINOKIO_LOG_FMT"},
		},
		&cli.DurationFlag{
			Name:    "window",
			Usage:   "trailing window of recent posts examined for review bombing",
			Value:   48 * time.Hour,
			EnvVars: []string{"PINOKIO_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "min-sample",
			Usage:   "minimum number of recent posts before review bombing can be detected",
			Value:   10,
			EnvVars: []string{"PINOKIO_MIN_SAMPLE"},
		},
		&cli.Float64Flag{
			Name:    "outlier-fraction",
			Usage:   "fraction of Unknown/Warning posts above which review bombing is detected",
			Value:   0.3,
			EnvVars: []string{"PINOKIO_OUTLIER_FRACTION"},
		},
		&cli.Float64Flag{
			Name:    "scan-rate",
			Usage:   "max review-bombing checks per second (0 for unlimited)",
			EnvVars: []string{"PINOKIO_SCAN_RATE"},
		},
		&cli.StringFlag{
			Name:    "status-policy",
			Usage:   "how re-scoring interacts with evaluation-derived status: last-write-wins or counter-wins",
			Value:   string(evaluation.PolicyLastWriteWins),
			EnvVars: []string{"PINOKIO_STATUS_POLICY"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		modeCmd,
		checkCmd,
		seedCmd,
		versionCmd,
	}

	return app.Run(args)
}

// Process-wide setup shared by all commands: logging, database, and the
// engine configuration from global flags.
func configEngine(cctx *cli.Context) (*engine.Engine, *gorm.DB, Config, error) {
	logger, err := cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
	if err != nil {
		return nil, nil, Config{}, err
	}

	policy, err := evaluation.ParsePolicy(cctx.String("status-policy"))
	if err != nil {
		return nil, nil, Config{}, err
	}

	mcfg := monitor.DefaultConfig()
	mcfg.Window = cctx.Duration("window")
	mcfg.MinSample = cctx.Int("min-sample")
	mcfg.OutlierFraction = cctx.Float64("outlier-fraction")
	if r := cctx.Float64("scan-rate"); r > 0 {
		mcfg.ScanLimit = rate.Limit(r)
	}

	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"), logger)
	if err != nil {
		return nil, nil, Config{}, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, nil, Config{}, err
	}
	if err := models.RunAllMigrations(db); err != nil {
		return nil, nil, Config{}, fmt.Errorf("migrating database: %w", err)
	}

	config := Config{
		Logger:          logger,
		RedisURL:        cctx.String("redis-url"),
		SlackWebhookURL: cctx.String("slack-webhook-url"),
		Monitor:         mcfg,
		Policy:          policy,
	}
	if cctx.Command.Name == "serve" {
		config.Bind = cctx.String("bind")
		config.AdminToken = cctx.String("admin-token")
		config.MonitorInterval = cctx.Duration("monitor-interval")
		config.SubmitRateLimit = cctx.Float64("submit-rate-limit")
	}

	eng, err := NewEngine(db, config)
	if err != nil {
		return nil, nil, Config{}, err
	}
	return eng, db, config, nil
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8000",
			EnvVars: []string{"PINOKIO_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"PINOKIO_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for the operator API; admin routes are disabled without one",
			EnvVars: []string{"PINOKIO_ADMIN_TOKEN"},
		},
		&cli.DurationFlag{
			Name:    "monitor-interval",
			Usage:   "run review-bombing checks in the background on this interval, instead of on each ingested post",
			EnvVars: []string{"PINOKIO_MONITOR_INTERVAL"},
		},
		&cli.Float64Flag{
			Name:    "submit-rate-limit",
			Usage:   "per-client evaluation and report submissions per second (0 for unlimited)",
			Value:   5,
			EnvVars: []string{"PINOKIO_SUBMIT_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		shutdownOTEL, err := configOTEL("pinokio")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownOTEL()

		eng, _, config, err := configEngine(cctx)
		if err != nil {
			return err
		}
		srv := NewServer(eng, config)

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI()
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

var modeCmd = &cli.Command{
	Name:  "mode",
	Usage: "inspect or change the moderation mode",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:  "show",
			Usage: "print the current moderation mode",
			Action: func(cctx *cli.Context) error {
				eng, _, _, err := configEngine(cctx)
				if err != nil {
					return err
				}
				mode, err := eng.ModerationMode(cctx.Context)
				if err != nil {
					return err
				}
				return printJSON(ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
			},
		},
		&cli.Command{
			Name:  "reset",
			Usage: "return to normal moderation mode",
			Action: func(cctx *cli.Context) error {
				eng, _, _, err := configEngine(cctx)
				if err != nil {
					return err
				}
				mode, err := eng.ResetModerationMode(cctx.Context, "cli")
				if err != nil {
					return err
				}
				return printJSON(ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
			},
		},
		&cli.Command{
			Name:  "activate",
			Usage: "force elevated moderation mode",
			Action: func(cctx *cli.Context) error {
				eng, _, _, err := configEngine(cctx)
				if err != nil {
					return err
				}
				mode, err := eng.ActivateModerationMode(cctx.Context, "cli")
				if err != nil {
					return err
				}
				return printJSON(ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
			},
		},
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "run one review-bombing check and print the report",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "at",
			Usage: "end of the examined window (ISO 8601, date, or unix seconds); defaults to now",
		},
	},
	Action: func(cctx *cli.Context) error {
		now := time.Now()
		if raw := cctx.String("at"); raw != "" {
			ts, err := util.ParseTimestamp(raw)
			if err != nil {
				return err
			}
			now = ts
		}
		eng, _, _, err := configEngine(cctx)
		if err != nil {
			return err
		}
		rep, err := eng.Monitor.CheckAndMaybeActivate(cctx.Context, now)
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "insert fake authors, posts and comments for local development",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "authors",
			Value: 20,
		},
		&cli.IntFlag{
			Name:  "posts",
			Value: 50,
		},
		&cli.Float64Flag{
			Name:  "bad-fraction",
			Usage: "share of posts written by low-reputation authors using manipulation keywords",
			Value: 0.2,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed (0 for random)",
		},
	},
	Action: func(cctx *cli.Context) error {
		eng, db, _, err := configEngine(cctx)
		if err != nil {
			return err
		}
		faker := gofakeit.New(cctx.Int64("seed"))
		sum, err := seedData(cctx.Context, db, eng, faker, SeedOptions{
			Authors:     cctx.Int("authors"),
			Posts:       cctx.Int("posts"),
			BadFraction: cctx.Float64("bad-fraction"),
		})
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "print version",
	Action: func(cctx *cli.Context) error {
		fmt.Println(versioninfo.Short())
		return nil
	},
}
