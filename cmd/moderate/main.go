package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v2"

	"github.com/mwork/moderation-api/internal/domain/moderation"
	"github.com/mwork/moderation-api/internal/pkg/countstore"
	"github.com/mwork/moderation-api/internal/pkg/database"
	"github.com/mwork/moderation-api/internal/pkg/logger"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:  "moderate",
		Usage: "run the moderation pipeline from the command line",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
	app.Before = func(cctx *cli.Context) error {
		return logger.Init(logger.Config{
			Level:       cctx.String("log-level"),
			Environment: "development",
			Service:     "moderate",
			Output:      os.Stderr,
		})
	}

	app.Commands = []*cli.Command{
		evaluateCmd,
		inspectCmd,
	}

	return app.Run(args)
}

var evaluateCmd = &cli.Command{
	Name:      "evaluate",
	Usage:     "score text as if posted by a fresh account",
	ArgsUsage: "[text]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "account-age",
			Usage: "age of the simulated account",
			Value: 30 * 24 * time.Hour,
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "content kind: post, comment, message, profile, other",
			Value: string(moderation.ContentKindPost),
		},
		&cli.StringSliceFlag{
			Name:  "recent",
			Usage: "earlier submission by the same account, one minute apart, newest first",
		},
		&cli.BoolFlag{
			Name:  "hostile-history",
			Usage: "mark the account as having recent hostile content",
		},
		&cli.BoolFlag{
			Name:    "passive",
			Usage:   "record punitive actions as skipped instead of enforcing them",
			EnvVars: []string{"MODERATION_PASSIVE"},
		},
		&cli.Float64Flag{
			Name:    "intent-weight",
			Value:   moderation.DefaultConfig().Weights.Intent,
			EnvVars: []string{"MODERATION_INTENT_WEIGHT"},
		},
		&cli.Float64Flag{
			Name:    "behavior-weight",
			Value:   moderation.DefaultConfig().Weights.Behavior,
			EnvVars: []string{"MODERATION_BEHAVIOR_WEIGHT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		text := strings.Join(cctx.Args().Slice(), " ")
		if text == "" {
			b, err := io.ReadAll(cctx.App.Reader)
			if err != nil {
				return fmt.Errorf("reading text from stdin: %w", err)
			}
			text = strings.TrimSpace(string(b))
		}
		if text == "" {
			return fmt.Errorf("no text to evaluate")
		}

		cfg := moderation.DefaultConfig()
		cfg.LegacyEnforcement = !cctx.Bool("passive")
		cfg.Weights.Intent = cctx.Float64("intent-weight")
		cfg.Weights.Behavior = cctx.Float64("behavior-weight")

		res := evaluateText(cctx.Context, cfg, evaluation{
			Text:           text,
			Kind:           moderation.ContentKind(cctx.String("kind")),
			AccountAge:     cctx.Duration("account-age"),
			Recent:         cctx.StringSlice("recent"),
			HostileHistory: cctx.Bool("hostile-history"),
		}, time.Now())

		return printJSON(cctx.App.Writer, res)
	},
}

type evaluation struct {
	Text           string
	Kind           moderation.ContentKind
	AccountAge     time.Duration
	Recent         []string
	HostileHistory bool
}

// evaluateText runs one submission through a throwaway in-memory service
func evaluateText(ctx context.Context, cfg moderation.Config, ev evaluation, now time.Time) *moderation.DecisionResult {
	store := moderation.NewMemoryStore(cfg.EventCap, nil)
	id := uuid.New()
	store.Register(id, now.Add(-ev.AccountAge))

	svc := moderation.NewService(store, countstore.NewMemCountStore(), nil, cfg).
		WithClock(func() time.Time { return now })

	recent := make([]moderation.RecentContent, len(ev.Recent))
	for i, c := range ev.Recent {
		recent[i] = moderation.RecentContent{Content: c, Timestamp: now.Add(-time.Duration(i+1) * time.Minute)}
	}

	return svc.Evaluate(ctx, moderation.EvaluateRequest{
		AccountID:     id,
		Content:       ev.Text,
		ContentType:   ev.Kind,
		RecentContent: recent,
		UserContext:   moderation.UserContext{RecentHostileContentFlag: ev.HostileHistory},
	})
}

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "print an account's moderation profile and recent events",
	ArgsUsage: "<account-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			EnvVars:  []string{"DATABASE_URL"},
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "number of events to show",
			Value: 20,
		},
	},
	Action: func(cctx *cli.Context) error {
		id, err := uuid.Parse(cctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", cctx.Args().First(), err)
		}

		ctx := cctx.Context
		db, err := database.NewPostgres(ctx, database.PostgresConfig{URL: cctx.String("database-url"), MaxOpenConns: 2})
		if err != nil {
			return err
		}
		defer database.ClosePostgres(db)

		cfg := moderation.DefaultConfig()
		svc := moderation.NewService(moderation.NewPostgresStore(db, cfg.EventCap), countstore.NewMemCountStore(), nil, cfg)

		acc, err := svc.Profile(ctx, id)
		if err != nil {
			return err
		}
		events, err := svc.Events(ctx, id, cctx.Int("limit"))
		if err != nil {
			return err
		}

		return printJSON(cctx.App.Writer, map[string]interface{}{
			"profile": moderation.NewProfileResponse(acc, time.Now()),
			"events":  events,
		})
	},
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
