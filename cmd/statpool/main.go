package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"statpool/internal/chain"
	"statpool/internal/config"
	"statpool/internal/fault"
	"statpool/internal/feed"
	"statpool/internal/ledger"
	"statpool/internal/market"
	"statpool/internal/pricing"
	"statpool/internal/reconcile"
	"statpool/internal/storage"
	"statpool/internal/storage/postgres"
	statsync "statpool/internal/sync"
)

// defaultMaxSupply is the mint cap applied to every newly created pool.
const defaultMaxSupply = 50

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "statpool",
		Short:        "Cricket stat pool marketplace client",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "EVM RPC URL")
	pf.String("token-address", "", "pool token contract address")
	pf.String("market-address", "", "marketplace contract address")
	pf.String("payment-address", "", "payment token contract address")
	pf.String("private-key", "", "hex private key of the acting account")
	pf.String("feed", "./data/stats.csv", "stats feed CSV path")
	pf.String("date", "", "feed date in M/D/YY form, defaults to today")
	pf.Bool("strict-feed", false, "treat a missing feed row as an error")
	pf.Bool("auto-approve", true, "top up payment allowance before buying")
	pf.String("pg-dsn", "", "Postgres DSN for the reconcile audit trail")
	pf.String("audit-out", "./data/reconcile.jsonl", "reconcile audit JSONL path")
	pf.Float64("submit-rps", 0.5, "transaction submissions per second")
	pf.Int("max-retries", 5, "maximum retry attempts for receipt polling")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	pf.Duration("cache-ttl", 5*time.Minute, "token metadata cache TTL")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		poolsCmd(),
		mintCmd(),
		ownedCmd(),
		listCmd(),
		cancelCmd(),
		buyCmd(),
		listingsCmd(),
		createPoolsCmd(),
		balanceCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *chain.Client
	actor    common.Address
	token    *ledger.TokenContract
	market   *ledger.MarketContract
	payment  *ledger.PaymentContract
	registry *market.Registry
	orch     *statsync.Orchestrator
	close    func()
}

func buildApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	closers := []func(){client.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = logger.Sync()
	}

	transactor, err := chain.NewTransactor(ctx, client, chain.TransactorConfig{
		PrivateKeyHex: cfg.PrivateKey,
		SubmitRate:    cfg.SubmitRate,
		WaitRetries:   cfg.MaxRetries,
		WaitBackoff:   cfg.RetryBackoff,
	}, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	tokenAddr := common.HexToAddress(cfg.TokenAddress)
	marketAddr := common.HexToAddress(cfg.MarketAddress)
	paymentAddr := common.HexToAddress(cfg.PaymentAddress)

	tokenContract, err := ledger.NewTokenContract(tokenAddr, client, transactor)
	if err != nil {
		closeAll()
		return nil, err
	}
	marketContract, err := ledger.NewMarketContract(marketAddr, client, transactor)
	if err != nil {
		closeAll()
		return nil, err
	}
	paymentContract, err := ledger.NewPaymentContract(paymentAddr, client, transactor)
	if err != nil {
		closeAll()
		return nil, err
	}

	var audit storage.Storage
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		audit = store
	} else {
		audit = storage.NewJsonlAudit(cfg.AuditOut)
	}

	feedDate := cfg.FeedDate
	if feedDate == "" {
		feedDate = feed.TodayFormatted(time.Now())
	}
	rows, err := feed.NewReader(cfg.FeedPath, logger).LoadRows()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load feed: %w", err)
	}
	selection := feed.NewSelection(feed.SelectForDate(rows, feedDate))

	reconciler := reconcile.New(reconcile.Config{StrictFeed: cfg.StrictFeed},
		selection, tokenContract, audit, logger)

	registry := market.NewRegistry(market.Config{AutoApprove: cfg.AutoApprove},
		marketContract, tokenContract, paymentContract, transactor.From(), logger)

	orch := statsync.New(statsync.Config{
		TokenSpender: tokenAddr,
		MetadataTTL:  cfg.CacheTTL,
	}, tokenContract, reconciler, registry, paymentContract, transactor.From(), logger)

	logger.Info("statpool ready",
		zap.String("rpc", cfg.RPCURL),
		zap.String("actor", transactor.From().Hex()),
		zap.String("token", tokenAddr.Hex()),
		zap.String("market", marketAddr.Hex()),
		zap.String("feed_date", feedDate),
		zap.Int("feed_rows", selection.Len()),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		actor:    transactor.From(),
		token:    tokenContract,
		market:   marketContract,
		payment:  paymentContract,
		registry: registry,
		orch:     orch,
		close:    closeAll,
	}, nil
}

// run wires signal handling and app teardown around a subcommand body.
func run(cmd *cobra.Command, body func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return present(a.logger, body(ctx, a))
}

// present applies the outcome policy to a subcommand result: a decline by
// the acting party is an expected outcome, not an error, and a policy
// rejection carries retry guidance.
func present(logger *zap.Logger, err error) error {
	switch {
	case err == nil:
		return nil
	case fault.Benign(err):
		logger.Info("action declined by signer", zap.Error(err))
		fmt.Println("declined; nothing was submitted")
		return nil
	case errors.Is(err, fault.ErrPolicyRejected):
		return fmt.Errorf("%w (the endpoint is throttling submissions, retry later)", err)
	default:
		return err
	}
}

func poolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "Show mintable pools after reconciling their stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.orch.MintableView(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("pool %d\t%s\t%s\t%s\tprice %s\tremaining %d\n",
						e.PoolID, e.Category, e.Role, e.Date, e.Price.StringFixed(2), e.Remaining)
				}
				return nil
			})
		},
	}
}

func mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <pool-id> [quantity]",
		Short: "Mint tokens from a pool",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := parseUint(args[0], "pool id")
			if err != nil {
				return err
			}
			quantity := uint64(1)
			if len(args) == 2 {
				if quantity, err = parseUint(args[1], "quantity"); err != nil {
					return err
				}
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				txHash, err := a.orch.Mint(ctx, poolID, quantity)
				if err != nil {
					return err
				}
				fmt.Printf("minted %d from pool %d in %s\n", quantity, poolID, txHash)
				return nil
			})
		},
	}
}

func ownedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owned [address]",
		Short: "Show owned tokens grouped by metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				owner := a.actor
				if len(args) == 1 {
					if !common.IsHexAddress(args[0]) {
						return fmt.Errorf("invalid address %q", args[0])
					}
					owner = common.HexToAddress(args[0])
				}
				entries, err := a.orch.OwnedView(ctx, owner)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%s\t%s\towned %d\tlisted %d\ttokens %v\n",
						e.Name, e.Description, len(e.TokenIDs), e.ListedCount, e.TokenIDs)
				}
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <token-id> [price]",
		Short: "List an owned token for sale, using the pool price when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseUint(args[0], "token id")
			if err != nil {
				return err
			}
			var price decimal.Decimal
			if len(args) == 2 {
				if price, err = decimal.NewFromString(args[1]); err != nil {
					return fmt.Errorf("invalid price %q: %w", args[1], err)
				}
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				txHash, err := a.orch.List(ctx, tokenID, price)
				if err != nil {
					return err
				}
				fmt.Printf("listed token %d in %s\n", tokenID, txHash)
				return nil
			})
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <token-id>",
		Short: "Cancel an active listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseUint(args[0], "token id")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				txHash, err := a.orch.Cancel(ctx, tokenID)
				if err != nil {
					return err
				}
				fmt.Printf("cancelled listing for token %d in %s\n", tokenID, txHash)
				return nil
			})
		},
	}
}

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <token-id>",
		Short: "Buy a listed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseUint(args[0], "token id")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				txHash, err := a.orch.Buy(ctx, tokenID)
				if err != nil {
					return err
				}
				fmt.Printf("bought token %d in %s\n", tokenID, txHash)
				return nil
			})
		},
	}
}

func listingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listings",
		Short: "Show active listings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				listings, err := a.orch.Listings(ctx)
				if err != nil {
					return err
				}
				for _, l := range listings {
					fmt.Printf("token %d\tseller %s\tprice %s\n",
						l.TokenID, l.Seller, l.Price.StringFixed(2))
				}
				return nil
			})
		},
	}
}

func createPoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-pools",
		Short: "Create a pool for every feed row of the selected date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				feedDate := a.cfg.FeedDate
				if feedDate == "" {
					feedDate = feed.TodayFormatted(time.Now())
				}
				rows, err := feed.NewReader(a.cfg.FeedPath, a.logger).LoadRows()
				if err != nil {
					return fmt.Errorf("load feed: %w", err)
				}
				selected := feed.SelectForDate(rows, feedDate)
				if len(selected) == 0 {
					return fmt.Errorf("feed has no rows for %s", feedDate)
				}

				for _, row := range selected {
					price, err := pricing.ComputePrice(row)
					if err != nil {
						return fmt.Errorf("price for %s: %w", row.Player, err)
					}
					attrs := reconcile.CanonicalAttributes(row)
					txHash, err := a.token.CreatePool(ctx, attrs, pricing.PriceToUnits(price), defaultMaxSupply)
					if err != nil {
						return fmt.Errorf("create pool for %s: %w", row.Player, err)
					}
					a.logger.Info("pool created",
						zap.String("player", row.Player),
						zap.String("category", row.Category),
						zap.String("price", price.StringFixed(2)),
						zap.String("tx", txHash),
					)
				}
				return nil
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the acting account's payment token balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				balance, err := a.payment.BalanceOf(ctx, a.actor)
				if err != nil {
					return err
				}
				decimals, err := a.payment.Decimals(ctx)
				if err != nil {
					return err
				}
				amount := decimal.NewFromBigInt(balance, -int32(decimals))
				fmt.Printf("%s\t%s\n", a.actor.Hex(), amount.String())
				return nil
			})
		},
	}
}

func parseUint(arg, name string) (uint64, error) {
	value, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return value, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
