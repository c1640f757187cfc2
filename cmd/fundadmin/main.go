package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	carryapp "github.com/wyfcoding/fundadmin/internal/carry/application"
	carrydomain "github.com/wyfcoding/fundadmin/internal/carry/domain"
	carryadapter "github.com/wyfcoding/fundadmin/internal/carry/infrastructure/adapter"
	carrymysql "github.com/wyfcoding/fundadmin/internal/carry/infrastructure/persistence/mysql"
	carryconsumer "github.com/wyfcoding/fundadmin/internal/carry/interfaces/consumer"
	carryhttp "github.com/wyfcoding/fundadmin/internal/carry/interfaces/http"
	ledgerapp "github.com/wyfcoding/fundadmin/internal/capitalledger/application"
	ledgerdomain "github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	ledgermysql "github.com/wyfcoding/fundadmin/internal/capitalledger/infrastructure/persistence/mysql"
	ledgerhttp "github.com/wyfcoding/fundadmin/internal/capitalledger/interfaces/http"
	feeapp "github.com/wyfcoding/fundadmin/internal/fee/application"
	feedomain "github.com/wyfcoding/fundadmin/internal/fee/domain"
	feeadapter "github.com/wyfcoding/fundadmin/internal/fee/infrastructure/adapter"
	feemysql "github.com/wyfcoding/fundadmin/internal/fee/infrastructure/persistence/mysql"
	feehttp "github.com/wyfcoding/fundadmin/internal/fee/interfaces/http"
	navapp "github.com/wyfcoding/fundadmin/internal/nav/application"
	navdomain "github.com/wyfcoding/fundadmin/internal/nav/domain"
	navmysql "github.com/wyfcoding/fundadmin/internal/nav/infrastructure/persistence/mysql"
	navredis "github.com/wyfcoding/fundadmin/internal/nav/infrastructure/persistence/redis"
	navconsumer "github.com/wyfcoding/fundadmin/internal/nav/interfaces/consumer"
	navhttp "github.com/wyfcoding/fundadmin/internal/nav/interfaces/http"
	closeapp "github.com/wyfcoding/fundadmin/internal/periodclose/application"
	closedomain "github.com/wyfcoding/fundadmin/internal/periodclose/domain"
	closeadapter "github.com/wyfcoding/fundadmin/internal/periodclose/infrastructure/adapter"
	closemessaging "github.com/wyfcoding/fundadmin/internal/periodclose/infrastructure/messaging"
	closemysql "github.com/wyfcoding/fundadmin/internal/periodclose/infrastructure/persistence/mysql"
	closehttp "github.com/wyfcoding/fundadmin/internal/periodclose/interfaces/http"
	stmtapp "github.com/wyfcoding/fundadmin/internal/statement/application"
	stmtdomain "github.com/wyfcoding/fundadmin/internal/statement/domain"
	stmtadapter "github.com/wyfcoding/fundadmin/internal/statement/infrastructure/adapter"
	stmtmessaging "github.com/wyfcoding/fundadmin/internal/statement/infrastructure/messaging"
	stmtmysql "github.com/wyfcoding/fundadmin/internal/statement/infrastructure/persistence/mysql"
	stmthttp "github.com/wyfcoding/fundadmin/internal/statement/interfaces/http"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/redis"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var configPath = flag.String("config", "configs/fundadmin/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	logCfg := &logging.Config{
		Service:    cfg.Server.Name,
		Module:     "fundadmin",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. Infrastructure
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&ledgerdomain.Fund{}, &ledgerdomain.ShareClass{},
			&ledgerdomain.CapitalAccount{}, &ledgerdomain.CapitalTransaction{},
			&navdomain.NAVMark{},
			&feedomain.FeeSchedule{}, &feedomain.FeeTransaction{}, &feedomain.FeeWatermark{},
			&carrydomain.CarriedInterestAccount{}, &carrydomain.WaterfallCalculation{},
			&carrydomain.ClawbackProvision{},
			&stmtdomain.InvestorStatement{},
			&closedomain.PeriodCloseRun{},
			&outbox.Message{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	redisClient, redisCleanup, err := redis.NewClient(&cfg.Data.Redis, logger)
	if err != nil {
		slog.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer redisCleanup()

	// 5. Kafka & Outbox
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Repositories
	fundRepo := ledgermysql.NewFundRepository(db.RawDB())
	accountRepo := ledgermysql.NewAccountRepository(db.RawDB())
	txnRepo := ledgermysql.NewTransactionRepository(db.RawDB())
	navRepo := navmysql.NewNAVRepository(db.RawDB())
	navCache := navredis.NewNAVReadCache(redisClient)
	scheduleRepo := feemysql.NewScheduleRepository(db.RawDB())
	feeTxnRepo := feemysql.NewFeeTransactionRepository(db.RawDB())
	watermarkRepo := feemysql.NewWatermarkRepository(db.RawDB())
	carryRepo := carrymysql.NewCarryAccountRepository(db.RawDB())
	waterfallRepo := carrymysql.NewWaterfallRepository(db.RawDB())
	clawbackRepo := carrymysql.NewClawbackRepository(db.RawDB())
	statementRepo := stmtmysql.NewStatementRepository(db.RawDB())
	runRepo := closemysql.NewRunRepository(db.RawDB())

	// 7. Application
	ledgerSvc := ledgerapp.NewLedgerService(fundRepo, accountRepo, txnRepo)
	ledgerQuery := ledgerapp.NewLedgerQueryService(fundRepo, accountRepo, txnRepo)
	navSvc := navapp.NewNAVService(navRepo, navCache)

	feeSvc := feeapp.NewFeeService(
		scheduleRepo, feeTxnRepo, watermarkRepo,
		feeadapter.NewLedgerGateway(ledgerSvc, ledgerQuery),
		feeadapter.NewNAVGateway(navSvc),
	)
	carrySvc := carryapp.NewCarryService(
		carryRepo, waterfallRepo, clawbackRepo,
		carryadapter.NewFundValueProvider(navSvc),
	)
	stmtSvc := stmtapp.NewStatementService(
		statementRepo,
		stmtadapter.NewLedgerGateway(ledgerQuery),
		stmtadapter.NewNAVGateway(navSvc),
		stmtmessaging.NewOutboxPublisher(outboxMgr),
	)

	preflight := closeadapter.NewPreflight(ledgerQuery, navSvc)
	closeSvc := closeapp.NewCloseService(
		runRepo,
		preflight,
		closeadapter.NewFeeStage(feeSvc),
		closeadapter.NewCarryStage(carrySvc),
		closeadapter.NewStatementStage(stmtSvc),
		closemessaging.NewOutboxPublisher(outboxMgr),
	)
	closeJob := closeapp.NewCloseSchedulerJob(closeSvc, preflight, logger.Logger)

	// 8. Consumers
	navMarkHandler := navconsumer.NewNAVMarkHandler(navSvc, logger.Logger)
	waterfallHandler := carryconsumer.NewWaterfallHandler(carrySvc, logger.Logger)

	intakeTopics := []string{navMarkHandler.Topic(), waterfallHandler.Topic()}
	consumers := make([]*kafka.Consumer, 0, len(intakeTopics))
	for _, topic := range intakeTopics {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = topic
		if consumerCfg.GroupID == "" {
			consumerCfg.GroupID = "fundadmin-intake-group"
		}
		consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
		if topic == navMarkHandler.Topic() {
			consumer.Start(context.Background(), 3, navMarkHandler.Handle)
		} else {
			consumer.Start(context.Background(), 3, waterfallHandler.Handle)
		}
		consumers = append(consumers, consumer)
	}

	// 9. Interfaces
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	ledgerhttp.NewLedgerHandler(ledgerSvc, ledgerQuery).RegisterRoutes(api)
	navhttp.NewNAVHandler(navSvc).RegisterRoutes(api)
	feehttp.NewFeeHandler(feeSvc).RegisterRoutes(api)
	carryhttp.NewCarryHandler(carrySvc).RegisterRoutes(api)
	stmthttp.NewStatementHandler(stmtSvc).RegisterRoutes(api)
	closehttp.NewCloseHandler(closeSvc).RegisterRoutes(api)

	// 10. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		closeJob.Start(ctx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		slog.Info("gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		grpcSrv.GracefulStop()
		for _, c := range consumers {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
