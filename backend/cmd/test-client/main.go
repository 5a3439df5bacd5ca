package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/transport"
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:50051", "адрес gRPC сервера симуляции")
		agentID = flag.String("agent", "", "id агента для действия")
		action  = flag.String("action", "", "действие: move, eat, drink, sleep, ...")
		target  = flag.String("target", "", "цель действия (id дома или ресурса)")
		item    = flag.String("item", "", "предмет для pick_up/drop")
		qty     = flag.Uint("qty", 1, "количество предметов")
		timeout = flag.Duration("timeout", 5*time.Second, "таймаут запросов")
	)
	flag.Parse()

	conn, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		transport.DialOption(),
	)
	if err != nil {
		log.Fatalf("Ошибка подключения к %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *action != "" {
		req := &transport.AgentActionRequest{
			AgentID:  *agentID,
			Action:   *action,
			Target:   *target,
			Item:     *item,
			Quantity: uint32(*qty),
		}
		var resp transport.AgentActionResponse
		if err := conn.Invoke(ctx, transport.SimulationExecuteAgentAction, req, &resp); err != nil {
			log.Fatalf("Ошибка выполнения действия: %v", err)
		}
		log.Printf("Действие %s: success=%v code=%s %s", *action, resp.Success, resp.Code, resp.Message)
	}

	var state service.WorldState
	if err := conn.Invoke(ctx, transport.SimulationGetWorldState, &transport.WorldStateRequest{}, &state); err != nil {
		log.Fatalf("Ошибка получения состояния мира: %v", err)
	}

	log.Printf("Тик %d, %02d:%02d (ночь: %v): агентов %d, домов %d, ресурсов %d",
		state.Tick, state.Hour, state.Minute, state.IsNight,
		len(state.Agents), len(state.Houses), len(state.Resources))
	for _, a := range state.Agents {
		log.Printf("  %s %s в (%.2f, %.2f, %.2f) голод %.1f жажда %.1f энергия %.1f",
			a.Name, a.ID, a.Position.X(), a.Position.Y(), a.Position.Z(),
			a.Needs.Hunger, a.Needs.Thirst, a.Needs.Energy)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		log.Fatalf("Ошибка вывода состояния: %v", err)
	}
}
