package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicreport-be/config"
	"civicreport-be/controllers"
	"civicreport-be/logger"
	"civicreport-be/metrics"
	"civicreport-be/middlewares"
	"civicreport-be/notify"
	"civicreport-be/reportform"
	"civicreport-be/routes"
	"civicreport-be/session"
	"civicreport-be/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	l := logger.New(cfg.Env)

	if cfg.JWTSecret == "" {
		l.Fatal().Msg("JWT_SECRET is not set")
	}

	st := openStore(cfg, l)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(ctx)
	}()

	if cfg.SeedData {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.Seed(ctx, st); err != nil {
			l.Fatal().Err(err).Msg("seeding failed")
		}
		cancel()
	}

	// redis is optional: without it sessions live in memory and the
	// submission limit is off
	var (
		rdb      *redis.Client
		limiter  middlewares.Counter
		sessions session.Store  = session.NewMemory()
		push     notify.Channel = notify.LogChannel{Logger: l, Medium: notify.ChannelPush}
	)
	if cfg.RedisAddress != "" {
		client, err := config.ConnectRedis(cfg)
		if err != nil {
			l.Fatal().Err(err).Msg("redis connect failed")
		}
		rdb = client
		defer rdb.Close()
		limiter = rdb
		sessions = session.NewRedis(rdb, session.DefaultTTL)
		push = notify.RedisChannel{Client: rdb}
	} else {
		l.Warn().Msg("REDIS_ADDRESS not set, using in-memory sessions without a submission limit")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	h := &controllers.Handler{
		Store:    st,
		Sessions: sessions,
		Notifier: notify.NewDispatcher(map[string]notify.Channel{
			notify.ChannelPush:  push,
			notify.ChannelEmail: notify.LogChannel{Logger: l, Medium: notify.ChannelEmail},
			notify.ChannelSMS:   notify.LogChannel{Logger: l, Medium: notify.ChannelSMS},
		}),
		Transcriber: reportform.LabelTranscriber{},
		Metrics:     m,
		Config:      cfg,
		Log:         l,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(l), m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	routes.Setup(r, h, limiter)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.VoiceNoteTimeout + 15*time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Info().Msg("shutdown complete")
}

func openStore(cfg config.Config, l zerolog.Logger) store.Store {
	switch cfg.StoreDriver {
	case "mongo":
		db, err := config.ConnectDB(cfg)
		if err != nil {
			l.Fatal().Err(err).Msg("mongo connect failed")
		}
		s := store.NewMongo(db)
		if err := s.EnsureIndexes(); err != nil {
			l.Fatal().Err(err).Msg("creating indexes failed")
		}
		return s
	case "memory", "":
		return store.NewMemory()
	}
	l.Fatal().Str("driver", cfg.StoreDriver).Msg("unknown STORE_DRIVER")
	return nil
}
