package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/timecode/internal/config"
	"github.com/zsiec/timecode/internal/logger"
	"github.com/zsiec/timecode/internal/metrics"
	"github.com/zsiec/timecode/internal/server"
	"github.com/zsiec/timecode/pkg/framerate"
	"github.com/zsiec/timecode/pkg/timecode"
	"github.com/zsiec/timecode/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
		decode      string
		payload     string
		rate        string
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&decode, "decode", "", "Decode one payload offline: smpte12m, smpte331m or ebustl")
	flag.StringVar(&payload, "hex", "", "Hex encoded payload for -decode")
	flag.StringVar(&rate, "rate", "25", "Frame rate for -decode")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	if decode != "" {
		if err := decodeOnce(decode, payload, rate); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting timecode service")
	log.WithFields(logrus.Fields{
		"config_path":        configPath,
		"default_frame_rate": cfg.Timecode.DefaultFrameRate,
		"strict":             cfg.Timecode.Strict,
	}).Debug("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient redis.UniversalClient
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		redisClient = newRedisClient(&cfg.Redis)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		log.WithField("addresses", cfg.Redis.Addresses).Info("Connected to Redis successfully")
	}

	if cfg.Metrics.Enabled {
		metrics.RegisterBuildInfo(version.GetInfo().Labels())
		go startMetricsServer(cfg.Metrics, logger.NewLogrusAdapter(logger.WithComponent(log, "metrics")))
	}

	srv, err := server.New(cfg, log, redisClient)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis connection")
		}
	}

	log.Info("Server shutdown complete")
}

// newRedisClient returns a cluster client when more than one address is
// configured.
func newRedisClient(cfg *config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// decodeOnce decodes a single hex payload and prints it as JSON.
func decodeOnce(formatName, payload, rateName string) error {
	format, err := timecode.ParseFormat(formatName)
	if err != nil {
		return err
	}
	rate, err := framerate.Parse(rateName)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.ReplaceAll(payload, " ", ""))
	if err != nil {
		return fmt.Errorf("invalid -hex payload: %w", err)
	}

	tc, ok := timecode.Parse(format, data, rate)
	if !ok {
		return fmt.Errorf("%s payload did not decode", format)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tc)
}

func startMetricsServer(cfg config.MetricsConfig, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
