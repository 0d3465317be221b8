package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-engine/internal/app"
	"github.com/aman-zulfiqar/amm-engine/internal/config"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	jsonOut    bool

	out    io.Writer
	logger *logrus.Logger
	app    *app.App
}

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "Quote and execute pool operations against the AMM validator app",
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default .amm.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		c.poolCmd(),
		c.quoteCmd(),
		c.swapCmd(false),
		c.addCmd(false),
		c.removeCmd(false),
		c.redeemCmd(),
		c.bootstrapCmd(),
		c.optInCmd(),
		c.excessCmd(),
		c.balanceCmd(),
		c.watchCmd(),
	)
	return root
}

// open builds the engine on first use. Commands that never touch the
// ledger do not pay for it.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	c.logger = logrus.New()
	c.logger.SetOutput(os.Stderr)
	c.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	c.logger.SetLevel(lvl)

	a, err := app.New(ctx, cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// pairArgs parses the two asset id positional arguments.
func pairArgs(args []string) (engine.Pair, error) {
	if len(args) != 2 {
		return engine.Pair{}, fmt.Errorf("expected two asset ids, got %d", len(args))
	}
	a, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return engine.Pair{}, fmt.Errorf("invalid asset id %q", args[0])
	}
	b, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return engine.Pair{}, fmt.Errorf("invalid asset id %q", args[1])
	}
	return engine.Pair{AssetA: a, AssetB: b}, nil
}

// assetArgs parses asset id arguments; none means ALGO.
func assetArgs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return []uint64{0}, nil
	}
	ids := make([]uint64, 0, len(args))
	for _, s := range args {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
