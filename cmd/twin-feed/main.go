package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	logpkg "twin-data/common/logger"
	mqttcommon "twin-data/common/mqtt"
	"twin-data/internal/app"
	"twin-data/internal/config"
	"twin-data/internal/consumer"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "twin-feed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !cfg.MQTT.Enabled {
		log.Fatal("MQTT feed is disabled, set MQTT_ENABLED=true")
	}
	if cfg.StorageBackend != config.BackendRedis {
		log.Warn("twin-feed without redis backend: live values will not reach other processes",
			zap.String("backend", cfg.StorageBackend))
	}

	log.Info("Starting twin-feed service",
		zap.String("broker", cfg.MQTT.Broker),
		zap.String("topic", cfg.MQTT.Topic),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := app.OpenBackend(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer backend.Close()

	mqttClient, err := mqttcommon.NewClient(cfg.MQTTCommon(), log)
	if err != nil {
		log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	// 只接受注册表中的自动传感器
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	known := app.SensorIDs(app.AutomaticSensors(cfg, time.Now(), rnd, log))
	feed := consumer.NewMQTTConsumer(mqttClient, backend.KV, cfg.MQTT.Topic, cfg.MQTT.QoS, log,
		consumer.WithKnownSensors(known),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := feed.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Consumer error", zap.Error(err))
	}
	cancel()

	feed.Stop()
	log.Info("Service stopped")
}
