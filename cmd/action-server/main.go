package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/shop-assistant/internal/actions"
	actionsgrpc "github.com/dmehra2102/shop-assistant/internal/actions/infrastructure/grpc"
	actionshttp "github.com/dmehra2102/shop-assistant/internal/actions/infrastructure/http"
	cartapp "github.com/dmehra2102/shop-assistant/internal/cart/application"
	cartmongo "github.com/dmehra2102/shop-assistant/internal/cart/infrastructure/mongo"
	cartpg "github.com/dmehra2102/shop-assistant/internal/cart/infrastructure/postgres"
	"github.com/dmehra2102/shop-assistant/internal/config"
	invapp "github.com/dmehra2102/shop-assistant/internal/inventory/application"
	invmongo "github.com/dmehra2102/shop-assistant/internal/inventory/infrastructure/mongo"
	invpg "github.com/dmehra2102/shop-assistant/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/shop-assistant/internal/order/application"
	orderdomain "github.com/dmehra2102/shop-assistant/internal/order/domain"
	orderkafka "github.com/dmehra2102/shop-assistant/internal/order/infrastructure/kafka"
	ordermongo "github.com/dmehra2102/shop-assistant/internal/order/infrastructure/mongo"
	orderpg "github.com/dmehra2102/shop-assistant/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/shop-assistant/internal/storage/memory"
	mongostore "github.com/dmehra2102/shop-assistant/internal/storage/mongo"
	pgstore "github.com/dmehra2102/shop-assistant/internal/storage/postgres"
	"github.com/dmehra2102/shop-assistant/pkg/idempotency"
	"github.com/dmehra2102/shop-assistant/pkg/logging"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
	"github.com/dmehra2102/shop-assistant/pkg/shutdown"
	"github.com/dmehra2102/shop-assistant/pkg/tracing"
)

// stores is one backend's implementation of every port.
type stores struct {
	catalog    invapp.Catalog
	carts      cartapp.CartRepository
	transactor orderapp.Transactor
	orders     orderapp.OrderReader
	outbox     outbox.Store
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("action-server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "action-server", cfg.OTLPEndpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	ids, err := orderdomain.NewIDGenerator(cfg.OrderIDStrategy)
	if err != nil {
		return err
	}
	catalog := invapp.NewService(log, st.catalog)
	carts := cartapp.NewService(log, st.carts, st.catalog)
	orders := orderapp.NewService(log, st.transactor, st.orders, ids, cfg.OrderTimeout)
	registry := actions.NewRegistry(log, actions.Shop(log, catalog, carts, orders)...)

	var cache actionshttp.ResponseCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		cache = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		log.Info("response replay enabled", "redis", cfg.RedisAddr, "ttl", cfg.IdempotencyTTL.String())
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, st.outbox, dispatch, "action-server-"+uuid.NewString()[:8])
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	health, err := actionsgrpc.Run(log, cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	defer health.Stop()

	handler := actionshttp.NewHandler(log, registry, cache)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.OrderTimeout + 5*time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "actions", registry.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	health.Drain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("action-server shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := pgstore.Migrate(cfg.PGURL); err != nil {
			return stores{}, err
		}
		pool, err := pgstore.Connect(ctx, cfg.PGURL)
		if err != nil {
			return stores{}, err
		}
		orders := orderpg.NewRepository(log, pool)
		return stores{
			catalog:    invpg.NewRepository(log, pool),
			carts:      cartpg.NewRepository(log, pool),
			transactor: orders,
			orders:     orders,
			outbox:     orderpg.NewOutboxStore(log, pool),
			close:      pool.Close,
		}, nil

	case config.DriverMongo:
		db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}
		if err := mongostore.CreateIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(ctx)
			return stores{}, err
		}
		orders := ordermongo.NewRepository(log, db)
		return stores{
			catalog:    invmongo.NewRepository(log, db),
			carts:      cartmongo.NewRepository(log, db),
			transactor: orders,
			orders:     orders,
			outbox:     ordermongo.NewOutboxStore(log, db),
			close:      func() { _ = db.Client().Disconnect(context.Background()) },
		}, nil

	default:
		log.Warn("using in-memory store; state is lost on exit")
		s := memory.NewStore()
		return stores{
			catalog:    s,
			carts:      s,
			transactor: s,
			orders:     s.OrderReader(),
			outbox:     s,
			close:      func() {},
		}, nil
	}
}
