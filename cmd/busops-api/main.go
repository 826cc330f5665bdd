// README: Entry point; loads config, wires the trip engine and notification sinks, starts HTTP and the sweep runners.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"busops/internal/config"
	httptransport "busops/internal/http"
	"busops/internal/infra"
	"busops/internal/modules/notification"
	"busops/internal/modules/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("BUSOPS_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		log.Fatalf("firebase auth: %v", err)
	}

	var store trip.Store
	switch cfg.Store.Kind {
	case "memory":
		store = trip.NewMemoryStore()
	default:
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		store = trip.NewPostgresStore(dbPool)
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()
	tokens := notification.NewTokenRegistry(redisClient)

	sinks := notification.NewFanout()
	var hub *notification.Hub
	for _, name := range cfg.Notification.Sinks {
		switch name {
		case "log":
			sinks.Add(name, notification.LogDispatcher{})
		case "fcm":
			client, err := infra.NewMessaging(ctx, app)
			if err != nil {
				log.Fatalf("firebase messaging: %v", err)
			}
			sinks.Add(name, notification.NewFCMDispatcher(client, tokens))
		case "kafka":
			kd := notification.NewKafkaDispatcher(infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
			defer kd.Close()
			sinks.Add(name, kd)
		case "redis":
			sinks.Add(name, notification.NewRedisPublisher(redisClient, cfg.Redis.Channel))
		case "ws":
			hub = notification.NewHub()
			sinks.Add(name, hub)
		default:
			log.Printf("[MAIN] action=skip_sink sink=%s reason=unknown", name)
		}
	}
	queue := notification.NewQueue(sinks, cfg.Notification.QueueSize)
	queue.Start(cfg.Notification.Workers)
	log.Printf("[MAIN] action=notifications sinks=%d workers=%d", sinks.Len(), cfg.Notification.Workers)

	var tripOpts []trip.Option
	if cfg.Trip.SweepLock {
		tripOpts = append(tripOpts, trip.WithSweepLock(trip.NewRedisSweepLock(redisClient)))
	}
	log.Printf("[MAIN] action=sweep_lock enabled=%t", cfg.Trip.SweepLock)
	tripSvc := trip.NewService(store, queue, cfg.Trip, tripOpts...)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Trip:         tripSvc,
		Tokens:       tokens,
		Hub:          hub,
		Verifier:     verifier,
		AllowOrigins: cfg.HTTP.AllowOrigins,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go tripSvc.RunAutoTransitions(ctx)
	go tripSvc.RunDelayMonitor(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[MAIN] action=shutdown err=%v", err)
		}
	}()

	log.Printf("[MAIN] action=listen addr=%s store=%s", cfg.HTTP.Addr, cfg.Store.Kind)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	queue.Close()
}
