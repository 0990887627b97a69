package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gridLadder/internal/asset"
	"gridLadder/internal/chain"
	"gridLadder/internal/config"
	"gridLadder/internal/engine"
	"gridLadder/internal/fixedpoint"
	"gridLadder/internal/journal"
	"gridLadder/internal/ladder"
	"gridLadder/internal/model"
	"gridLadder/internal/oracle"
	"gridLadder/internal/registry"
	"gridLadder/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:          "gridd",
		Short:        "Oracle-anchored grid ladder engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy an instance and serve the trading API",
		RunE:  runGridd,
	}
	addInstanceFlags(runCmd)
	runCmd.Flags().String("listen", ":8080", "HTTP listen address")
	runCmd.Flags().String("journal", "./data/trades.jsonl", "trade journal JSONL path")
	runCmd.Flags().String("instance-id", "", "override the generated instance id")

	root.AddCommand(runCmd)

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an instance, record it, and exit",
		RunE:  runDeploy,
	}
	addInstanceFlags(deployCmd)

	root.AddCommand(deployCmd)

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the ladder a deployment would generate",
		RunE:  runPreview,
	}
	addInstanceFlags(previewCmd)
	previewCmd.Flags().String("spot", "", "anchor price at 1e8, skips the oracle read")

	root.AddCommand(previewCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addInstanceFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("private-key", "", "engine account private key (hex)")
	cmd.Flags().String("owner", "", "owner address funding the inventory")
	cmd.Flags().String("base-token", "", "base ERC20 token address")
	cmd.Flags().String("quote-token", "", "quote ERC20 token address")
	cmd.Flags().String("base-feed", "", "Chainlink base/USD aggregator address")
	cmd.Flags().String("quote-feed", "", "Chainlink quote/USD aggregator address")
	cmd.Flags().Uint32("rung-count", 10, "number of sell rungs")
	cmd.Flags().Uint32("initial-deviation-bps", 100, "first rung offset above spot (bps)")
	cmd.Flags().Uint32("take-profit-bps", 200, "rebuy discount below average sell price (bps)")
	cmd.Flags().Uint32("price-growth-bps", 11000, "per-rung price step growth (bps, 10000 = flat)")
	cmd.Flags().Uint32("size-growth-bps", 500, "per-rung size growth from the third rung (bps)")
	cmd.Flags().String("base-rung-size", "", "first rung capacity in base units")
	cmd.Flags().String("subsequent-rung-size", "", "second rung capacity in base units")
	cmd.Flags().String("postgres-dsn", "", "Postgres DSN for the instance registry")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runGridd(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, instance, closeFn, err := deployInstance(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	instanceID := instance.ID
	if cfg.InstanceID != "" {
		instanceID = cfg.InstanceID
	}

	sink := journal.NewJsonlSink(cfg.JournalPath)
	apiServer := server.NewServer(cfg.ListenAddr, eng, sink, instanceID, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, instance, closeFn, err := deployInstance(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Println(instance.ID)
	return nil
}

func runPreview(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	params, err := parseParams(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spot, err := previewSpot(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	rungs, err := ladder.Build(params, spot)
	if err != nil {
		return err
	}

	fmt.Printf("anchor %s\n", fixedpoint.FormatUnits(spot, fixedpoint.PriceDecimals))
	for i, rung := range rungs {
		fmt.Printf("rung %2d  price %s  capacity %s\n",
			i, fixedpoint.FormatUnits(rung.Price, fixedpoint.PriceDecimals), rung.Capacity.String())
	}
	return nil
}

func previewSpot(ctx context.Context, cmd *cobra.Command, cfg config.RunConfig) (*big.Int, error) {
	if raw, _ := cmd.Flags().GetString("spot"); raw != "" {
		spot, ok := new(big.Int).SetString(raw, 10)
		if !ok || spot.Sign() <= 0 {
			return nil, fmt.Errorf("invalid spot price %q", raw)
		}
		return spot, nil
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("either --spot or --rpc with feed addresses is required")
	}
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	baseFeedAddr, err := parseAddr("base-feed", cfg.BaseFeed)
	if err != nil {
		return nil, err
	}
	quoteFeedAddr, err := parseAddr("quote-feed", cfg.QuoteFeed)
	if err != nil {
		return nil, err
	}

	return oracle.SpotPrice(ctx,
		oracle.NewChainlinkFeed(chainClient, baseFeedAddr),
		oracle.NewChainlinkFeed(chainClient, quoteFeedAddr),
		time.Now())
}

// deployInstance dials the chain, initializes a fresh engine, and records
// it in the registry. The returned closer releases the RPC client and,
// when configured, the Postgres pool.
func deployInstance(ctx context.Context, cfg config.RunConfig, logger *zap.Logger) (*engine.Engine, model.Instance, func(), error) {
	none := func() {}

	params, err := parseParams(cfg)
	if err != nil {
		return nil, model.Instance{}, none, err
	}

	if cfg.RPCURL == "" {
		return nil, model.Instance{}, none, fmt.Errorf("rpc url is required")
	}
	ownerAddr, err := parseAddr("owner", cfg.Owner)
	if err != nil {
		return nil, model.Instance{}, none, err
	}
	baseTokenAddr, err := parseAddr("base-token", cfg.BaseToken)
	if err != nil {
		return nil, model.Instance{}, none, err
	}
	quoteTokenAddr, err := parseAddr("quote-token", cfg.QuoteToken)
	if err != nil {
		return nil, model.Instance{}, none, err
	}
	baseFeedAddr, err := parseAddr("base-feed", cfg.BaseFeed)
	if err != nil {
		return nil, model.Instance{}, none, err
	}
	quoteFeedAddr, err := parseAddr("quote-feed", cfg.QuoteFeed)
	if err != nil {
		return nil, model.Instance{}, none, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, model.Instance{}, none, fmt.Errorf("connect rpc: %w", err)
	}
	closers := []func(){chainClient.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ledger, err := asset.NewERC20Ledger(chainClient, cfg.PrivateKey)
	if err != nil {
		closeAll()
		return nil, model.Instance{}, none, fmt.Errorf("engine account: %w", err)
	}

	var store registry.Store
	if cfg.PostgresDSN != "" {
		pgStore, err := registry.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, model.Instance{}, none, fmt.Errorf("connect registry: %w", err)
		}
		closers = append(closers, pgStore.Close)
		store = pgStore
	} else {
		store = registry.NewMemoryStore()
	}

	factory := func() *engine.Engine {
		return engine.New(engine.Deps{
			Ledger:    ledger,
			BaseFeed:  oracle.NewChainlinkFeed(chainClient, baseFeedAddr),
			QuoteFeed: oracle.NewChainlinkFeed(chainClient, quoteFeedAddr),
			Account:   ledger.Account(),
			Logger:    logger,
			Now:       time.Now,
		})
	}

	deployer := registry.NewDeployer(factory, store, logger)
	eng, instance, err := deployer.Deploy(ctx, params, baseTokenAddr, quoteTokenAddr, ownerAddr)
	if err != nil {
		closeAll()
		return nil, model.Instance{}, none, err
	}

	return eng, instance, closeAll, nil
}

func parseParams(cfg config.RunConfig) (ladder.Params, error) {
	baseSize, err := parseBig("base-rung-size", cfg.BaseRungSize)
	if err != nil {
		return ladder.Params{}, err
	}
	subsequentSize, err := parseBig("subsequent-rung-size", cfg.SubsequentRungSize)
	if err != nil {
		return ladder.Params{}, err
	}

	params := ladder.Params{
		RungCount:           cfg.RungCount,
		InitialDeviationBps: cfg.InitialDeviationBps,
		TakeProfitBps:       cfg.TakeProfitBps,
		PriceGrowthBps:      cfg.PriceGrowthBps,
		SizeGrowthBps:       cfg.SizeGrowthBps,
		BaseRungSize:        baseSize,
		SubsequentRungSize:  subsequentSize,
	}
	if err := params.Validate(); err != nil {
		return ladder.Params{}, err
	}
	return params, nil
}

func parseAddr(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseBig(name, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() <= 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", name, raw)
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
