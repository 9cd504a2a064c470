package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gridagent/gridagent/internal/blob"
	"github.com/gridagent/gridagent/internal/cache"
	"github.com/gridagent/gridagent/internal/config"
	"github.com/gridagent/gridagent/internal/fanout"
	"github.com/gridagent/gridagent/internal/grid"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	cfg := config.FromEnv(logger)

	l1, closeL1, err := buildL1(cfg)
	if err != nil {
		logger.Fatal("failed creating L1 tier", zap.Error(err))
	}
	defer closeL1()

	store, closeStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed creating durable store", zap.Error(err))
	}
	defer closeStore()

	l2 := cache.NewDurableTier(store, cfg.L2TTL, logger)

	registry := prometheus.NewRegistry()
	metrics := cache.NewMetrics(registry)

	queryCache, err := cache.New(l1, l2, cache.JSONSerializer{},
		cache.WithLogger(logger), cache.WithMetrics(metrics))
	if err != nil {
		logger.Fatal("failed constructing cache", zap.Error(err))
	}

	sheets, err := grid.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed connecting to postgres", zap.Error(err))
	}
	defer sheets.Close()

	if err := sheets.Init(ctx); err != nil {
		logger.Fatal("failed initializing database", zap.Error(err))
	}

	srv := &server{
		cache:    queryCache,
		store:    sheets,
		analyzer: grid.NewAnalyzer(sheets.FetchSheet, cfg.SheetCacheTTL, logger),
		pool:     fanout.New(cfg.FanoutWorkers, cfg.FanoutTimeout, logger),
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/sheets", srv.handleListSheets)
	router.GET("/sheets/batch", srv.handleBatchSheets)
	router.GET("/sheets/:id", srv.handleGetSheet)
	router.GET("/sheets/:id/analyze", srv.handleAnalyzeSheet)

	router.GET("/cache/stats", srv.handleCacheStats)
	router.POST("/cache/refresh", srv.handleCacheRefresh)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildL1(cfg config.Config) (cache.Tier, func(), error) {
	if cfg.L1Backend == "bigcache" {
		tier, err := cache.NewBigCacheTier(cache.BigCacheTierConfig{TTL: cfg.L1TTL})
		if err != nil {
			return nil, nil, err
		}
		return tier, func() { _ = tier.Close() }, nil
	}
	return cache.NewMemoryTier(cfg.L1TTL, cfg.L1MaxEntries), func() {}, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (blob.Store, func(), error) {
	if cfg.RedisAddr == "" {
		store, err := blob.NewFSStore(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	store, err := blob.NewRedisStore(client, "")
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}

type server struct {
	cache    *cache.MultiLevelCache
	store    *grid.Store
	analyzer *grid.Analyzer
	pool     *fanout.Pool
	logger   *zap.Logger
}

func (s *server) handleListSheets(c *gin.Context) {
	ctx := c.Request.Context()

	text, err := cache.Do(ctx, s.cache, "list_sheets", nil, nil, func(ctx context.Context) (string, error) {
		return s.store.ListSheets(ctx)
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": text})
}

func (s *server) handleGetSheet(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	text, err := s.cachedSheet(ctx, id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, grid.ErrSheetNotFound) {
			status = http.StatusNotFound
		}
		writeError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": text})
}

func (s *server) cachedSheet(ctx context.Context, id int64) (string, error) {
	return cache.Do(ctx, s.cache, "get_sheet", []any{id}, nil, func(ctx context.Context) (string, error) {
		sheet, err := s.store.FetchSheet(ctx, id)
		if err != nil {
			return "", err
		}
		return grid.FormatSheet(sheet, 1000), nil
	})
}

// handleBatchSheets fetches several sheets in parallel on the worker pool.
// Per-sheet failures are reported inline and do not fail the batch.
func (s *server) handleBatchSheets(c *gin.Context) {
	ctx := c.Request.Context()

	var ids []int64
	for _, part := range strings.Split(c.Query("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := parseID(part)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, errors.New("ids query parameter is required"))
		return
	}

	calls := make([]fanout.Call, len(ids))
	for i, id := range ids {
		calls[i] = func(ctx context.Context) (any, error) {
			return s.cachedSheet(ctx, id)
		}
	}

	results := s.pool.Run(ctx, calls)

	out := make([]gin.H, len(results))
	for i, res := range results {
		if res.Err != nil {
			out[i] = gin.H{"sheet_id": ids[i], "error": res.Err.Error()}
			continue
		}
		out[i] = gin.H{"sheet_id": ids[i], "result": res.Value}
	}

	c.JSON(http.StatusOK, gin.H{"sheets": out})
}

func (s *server) handleAnalyzeSheet(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	req := grid.AnalyzeRequest{
		SheetID:      id,
		Operations:   strings.Split(c.DefaultQuery("ops", "summary"), ","),
		FilterColumn: c.Query("filter_column"),
		FilterValue:  c.Query("filter_value"),
		FilterType:   c.DefaultQuery("filter_type", "contains"),
		GroupBy:      c.Query("group_by"),
	}

	text, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, grid.ErrSheetNotFound) {
			status = http.StatusNotFound
		}
		writeError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": text})
}

func (s *server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Statistics(c.Request.Context()))
}

func (s *server) handleCacheRefresh(c *gin.Context) {
	if err := s.cache.InvalidateAll(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared, next request will fetch fresh data"})
}

func parseID(idParam string) (int64, error) {
	return strconv.ParseInt(idParam, 10, 64)
}

func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
