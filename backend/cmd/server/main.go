package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentient-cities/backend/internal/adapter/in/grpcsrv"
	"sentient-cities/backend/internal/adapter/in/ws"
	physicsadapter "sentient-cities/backend/internal/adapter/out/physics"
	"sentient-cities/backend/internal/config"
	"sentient-cities/backend/internal/core/domain/service"
	port "sentient-cities/backend/internal/core/port/out/physics"
	"sentient-cities/backend/internal/game"
	"sentient-cities/backend/internal/persistence/indexdb"
	"sentient-cities/backend/internal/physics"
)

func main() {
	var (
		configPath  = flag.String("config", "", "путь к YAML-конфигурации (пусто - значения по умолчанию)")
		wsAddr      = flag.String("ws", "", "адрес HTTP/WebSocket сервера (переопределяет server.ws_addr)")
		grpcAddr    = flag.String("grpc", "", "адрес gRPC сервера симуляции (переопределяет server.grpc_addr)")
		physicsMode = flag.String("physics", "", "local или remote (переопределяет physics.mode)")
		physicsAddr = flag.String("physics-addr", "", "адрес удаленного сервера физики")
		dbPath      = flag.String("db", "", "путь к SQLite-индексу действий")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[Main] Ошибка загрузки конфигурации: %v", err)
	}
	override(&cfg.Server.WSAddr, *wsAddr)
	override(&cfg.Server.GRPCAddr, *grpcAddr)
	override(&cfg.Physics.Mode, *physicsMode)
	override(&cfg.Physics.Address, *physicsAddr)
	override(&cfg.Persistence.DBPath, *dbPath)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("[Main] Некорректная конфигурация: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newPhysicsBackend(cfg, logger)
	if err != nil {
		logger.Fatalf("[Main] Ошибка инициализации физики: %v", err)
	}
	defer backend.Close()

	world := service.NewWorldService(backend, logger)
	if cfg.World.Bootstrap {
		if err := world.Bootstrap(ctx); err != nil {
			logger.Fatalf("[Main] Ошибка создания стартового мира: %v", err)
		}
	}

	var index *indexdb.SQLiteIndex
	if cfg.Persistence.DBPath != "" {
		index, err = indexdb.OpenSQLite(cfg.Persistence.DBPath, logger)
		if err != nil {
			logger.Fatalf("[Main] Ошибка открытия индекса: %v", err)
		}
		world.SetAuditSink(index)
	}

	wsAdapter, err := ws.NewWSAdapter(world, logger)
	if err != nil {
		logger.Fatalf("[Main] Ошибка создания WebSocket адаптера: %v", err)
	}

	driver := game.NewTickDriver(world, game.DriverConfig{
		TargetTPS: cfg.Tick.RateHz,
		MaxDelta:  cfg.Tick.MaxDelta,
	}, logger)
	driver.RegisterSystem(game.NewBroadcastSystem(wsAdapter, cfg.Server.BroadcastEveryTicks))
	if cfg.World.PlantGrowth.Enabled {
		growth := game.DefaultPlantGrowthConfig()
		growth.MaxPlants = cfg.World.PlantGrowth.MaxPlants
		growth.SpawnInterval = cfg.World.PlantGrowth.SpawnInterval
		growth.Seed = cfg.World.PlantGrowth.Seed
		driver.RegisterSystem(game.NewPlantGrowthSystem(world, growth, logger))
	}
	if cfg.Persistence.SnapshotEveryTicks > 0 {
		var recorder game.SnapshotRecorder
		if index != nil {
			recorder = index
		}
		driver.RegisterSystem(game.NewSnapshotSystem(world, cfg.Persistence.SnapshotDir,
			cfg.Persistence.SnapshotEveryTicks, recorder, logger))
	}
	driver.RegisterSystem(game.NewMetricsSystem(world, driver, cfg.Tick.MetricsEveryTicks, logger))

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatalf("[Main] Ошибка открытия порта gRPC %s: %v", cfg.Server.GRPCAddr, err)
	}
	grpcServer := grpcsrv.NewServer(logger)
	grpcsrv.NewSimulationServer(world).Register(grpcServer)
	go func() {
		logger.Printf("[Main] gRPC сервер симуляции слушает %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Printf("[Main] gRPC сервер остановлен: %v", err)
		}
	}()

	// HTTP/WebSocket
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsAdapter.HandleWS)
	httpServer := &http.Server{
		Addr:              cfg.Server.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("[Main] WebSocket сервер слушает %s", cfg.Server.WSAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[Main] Ошибка HTTP сервера: %v", err)
			stop()
		}
	}()

	if err := driver.Start(ctx); err != nil {
		logger.Fatalf("[Main] Ошибка запуска драйвера тиков: %v", err)
	}

	select {
	case <-ctx.Done():
		logger.Printf("[Main] Получен сигнал завершения")
	case <-driver.Done():
		logger.Printf("[Main] Драйвер тиков остановился: %v", driver.Err())
	}

	// текущий шаг завершается до закрытия физики и индекса
	driver.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Main] Ошибка остановки HTTP сервера: %v", err)
	}
	grpcServer.GracefulStop()

	if index != nil {
		world.SetAuditSink(nil)
		if err := index.Close(); err != nil {
			logger.Printf("[Main] Ошибка закрытия индекса: %v", err)
		}
	}

	logger.Printf("[Main] Сервер остановлен, выполнено тиков: %d", driver.TickCount())
}

func newPhysicsBackend(cfg config.Config, logger *log.Logger) (port.PhysicsPort, error) {
	if cfg.Physics.Mode == config.PhysicsModeRemote {
		return physicsadapter.NewGRPCPhysicsAdapter(cfg.Physics.Address, logger)
	}
	return physics.NewEngine(cfg.PhysicsConfig(), logger)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
