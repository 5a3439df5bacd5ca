package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"sentient-cities/backend/internal/adapter/in/grpcsrv"
	"sentient-cities/backend/internal/config"
	"sentient-cities/backend/internal/physics"
)

// Отдельный процесс физики: встроенный движок за gRPC-сервисом physics.Physics
func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML-конфигурации")
		listen     = flag.String("listen", "", "адрес gRPC (переопределяет physics.listen_addr)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[PhysicsServer] Ошибка загрузки конфигурации: %v", err)
	}
	addr := cfg.Physics.ListenAddr
	if *listen != "" {
		addr = *listen
	}

	engine, err := physics.NewEngine(cfg.PhysicsConfig(), logger)
	if err != nil {
		logger.Fatalf("[PhysicsServer] Ошибка создания движка: %v", err)
	}
	defer engine.Close()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("[PhysicsServer] Ошибка открытия порта %s: %v", addr, err)
	}

	srv := grpcsrv.NewServer(logger)
	grpcsrv.NewPhysicsServer(engine, logger).Register(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Printf("[PhysicsServer] Остановка по сигналу")
		srv.GracefulStop()
	}()

	logger.Printf("[PhysicsServer] Сервер физики слушает %s", addr)
	if err := srv.Serve(lis); err != nil {
		logger.Printf("[PhysicsServer] Ошибка gRPC сервера: %v", err)
	}
}
