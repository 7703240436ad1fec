package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lurl.local/internal/app/linkengine"
	enginecache "lurl.local/internal/app/linkengine/cache"
	"lurl.local/internal/app/linkengine/repo"
	"lurl.local/internal/app/linkengine/stats"
	platformcache "lurl.local/internal/platform/cache"
	"lurl.local/internal/platform/config"
	"lurl.local/internal/platform/db"
	"lurl.local/internal/platform/httpserver"
	"lurl.local/internal/platform/metrics"
	"lurl.local/internal/platform/migrate"
	"lurl.local/internal/platform/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	slog.SetDefault(slog.New(h))

	//DB
	dbCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dbPool, errDB := db.New(dbCtx, cfg.DBDSN)
	if errDB != nil {
		log.Fatal(errDB)
	}
	defer dbPool.Close()
	slog.Info("数据库连接成功")

	if cfg.MigrateOnStart {
		res, err := migrate.Up(dbCtx, dbPool, "migrations")
		if err != nil {
			log.Fatal(err)
		}
		slog.Info("migrations applied", "dir", res.Dir, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
	}

	//Redis
	redisClient, errRedis := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if errRedis != nil {
		log.Fatal(errRedis)
	}
	defer redisClient.Close()

	//链接缓存（L1 ristretto + L2 redis）
	localCache, errLocal := enginecache.NewLocalCache(cfg.LocalCacheItems, cfg.LocalCacheBytes)
	if errLocal != nil {
		log.Fatal(errLocal)
	}
	linkCache := enginecache.NewLinkCache(redisClient, localCache, cfg.CacheTTL, cfg.NegativeCacheTTL)
	defer linkCache.Close()

	//布隆过滤器：启动时从库里预热，预热完成前不参与判断
	var bloomFilter *enginecache.BloomFilter
	if cfg.BloomEnabled {
		bloomFilter = enginecache.NewBloomFilter(cfg.BloomExpectedItems, cfg.BloomFPRate)
	} else {
		slog.Warn("Bloom filter disabled by config", "BLOOM_ENABLED", false)
	}

	linksRepo := repo.NewLinksRepo(dbPool)
	generator := linkengine.NewGenerator(linksRepo, cfg.CodeLength, cfg.CodeAttempts)

	//初始化统计收集器（根据配置选择 Channel 或 Kafka）
	var collector stats.Collector
	var kafkaConsumer *stats.KafkaConsumer
	var channelConsumer *stats.Consumer
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 收集使用统计", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaConsumer = stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, dbPool)
	} else {
		slog.Info("使用 Channel 收集使用统计")
		channelCollector := stats.NewChannelCollector(cfg.StatsBufferSize)
		collector = channelCollector
		channelConsumer = stats.NewConsumer(dbPool, channelCollector)
	}

	engine := linkengine.New(linksRepo, linkCache, bloomFilter, generator, collector, linkengine.Options{
		Lifetime: cfg.LinkLifetime,
		Renewal:  cfg.RenewalWindow,
	})

	if cfg.BloomEnabled {
		if err := engine.WarmBloom(dbCtx); err != nil {
			// 预热失败不致命：过滤器保持未就绪，解析路径直接回源
			slog.Error("bloom warmup failed", "err", err)
		}
	}

	metrics.Init()

	var shutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown = trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 仅本机/内网运维端口
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// 数据库连接状态检测
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := dbPool.Ping(dbCtx); err != nil {
			w.WriteHeader(500)
			w.Write([]byte("DB Ping Err"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DB ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminHandler := http.Handler(adminMux)
	if cfg.TracingEnabled {
		adminHandler = otelhttp.NewHandler(adminMux, "admin")
	}
	adminSrv := httpserver.New(cfg, cfg.AdminAddr, adminHandler)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errch := make(chan error, 1)

	go func() {
		errch <- httpserver.Run(adminSrv, cfg.ShutdownTimeout, stopCtx)
	}()

	// 启动 Kafka consumer（如果启用）
	if kafkaConsumer != nil {
		go kafkaConsumer.Run(stopCtx)
		defer kafkaConsumer.Close()
	}
	// 启动 Channel consumer（如果启用）
	if channelConsumer != nil {
		go channelConsumer.Run(stopCtx)
	}
	defer collector.Close()

	if err := <-errch; err != nil {
		stop()
		log.Fatal(err)
	}
	stop()
}
