// cmd/order-service/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"takeout/internal/pkg/bootstrap"
	"takeout/internal/pkg/config"
	"takeout/internal/pkg/httpclient"
	pkgredis "takeout/internal/pkg/redis"
	"takeout/internal/pkg/scheduler"
	accountapp "takeout/internal/service/account/application"
	accountinfra "takeout/internal/service/account/infrastructure"
	cartapp "takeout/internal/service/cart/application"
	cartinfra "takeout/internal/service/cart/infrastructure"
	catalogadapter "takeout/internal/service/catalog/adapter"
	"takeout/internal/service/order/application"
	"takeout/internal/service/order/infrastructure"
	orderadapter "takeout/internal/service/order/infrastructure/adapter"
	"takeout/internal/service/order/interfaces"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Infra.MySQL.User
	dsnCfg.Passwd = cfg.Infra.MySQL.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Infra.MySQL.Host, cfg.Infra.MySQL.Port)
	dsnCfg.DBName = cfg.Infra.MySQL.Database
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.Local
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}
	db, err := infrastructure.NewDB(dsnCfg.FormatDSN())
	if err != nil {
		log.Fatalf("init mysql: %v", err)
	}

	redisClient := pkgredis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)

	// 商品目录：准入限流 → Redis 旁路缓存 → 超时/重试/熔断 → 降级
	admission, err := catalogadapter.NewTokenBucketAdmission(redisClient, "catalog-service",
		cfg.Order.Catalog.RatePerSecond, cfg.Order.Catalog.RateBurst)
	if err != nil {
		log.Fatalf("init admission control: %v", err)
	}
	itemCache := catalogadapter.NewItemCache(redisClient, cfg.Order.Catalog.CacheTTL)
	catalogSvc := catalogadapter.NewCatalogHTTPAdapter(
		httpclient.NewClient(otel.Tracer(cfg.App.Name), cfg.App.Name),
		cfg.Order.Catalog, admission, itemCache)

	// 账本与购物车
	ledger := accountapp.NewLedgerService(
		accountinfra.NewGormAccountRepository(db), otel.Tracer("ledger"))
	cartRepo := cartinfra.NewGormCartRepository(db)
	cartSvc := cartapp.NewCartService(cartRepo, catalogSvc)

	// 订单核心
	publisher := orderadapter.NewKafkaEventPublisher(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderEventTopic)
	orderSvc := application.NewOrderService(
		infrastructure.NewGormOrderRepository(db),
		infrastructure.NewGormAddressBook(db),
		orderadapter.NewLocalCartAdapter(cartRepo),
		orderadapter.NewLocalLedgerAdapter(ledger),
		publisher,
		catalogSvc,
		cfg.Order.PaymentTimeout,
		cfg.Order.DeliveryTimeout,
	)

	// 定时清扫：多副本部署时用 ZooKeeper 临时节点保证同一任务只跑一个实例
	var sweepLock scheduler.Lock
	var zkLock *scheduler.ZkLock
	if cfg.Infra.Zookeeper.Enabled {
		zkLock, err = scheduler.NewZkLock(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			log.Fatalf("init zookeeper lock: %v", err)
		}
		sweepLock = zkLock
	}
	runner := scheduler.NewRunner(sweepLock)
	for _, job := range interfaces.NewSweepJobs(orderSvc, cfg.Order.PaymentSweepInterval, cfg.Order.DeliverySweepInterval) {
		runner.Register(job)
	}
	sweepCtx, stopSweeps := context.WithCancel(context.Background())

	handler := interfaces.NewHandler(orderSvc, cartSvc, ledger)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.Name,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.Register(appCtx.Mux)
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			runner.Start(sweepCtx)
		},
		OnShutdown: func(ctx context.Context) {
			stopSweeps()
			runner.Wait()
			publisher.Close()
			redisClient.Close()
			if zkLock != nil {
				zkLock.Close()
			}
		},
	})
}
