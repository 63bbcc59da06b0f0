package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/bus"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/duel"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/poker"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/store"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/transport"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/wallet"
)

func main() {
	log.Println("Starting ClawCasino wagering core...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Durable store ───────────────────────────────────────────────
	// All credentials come from the environment; a missing DATABASE_URL
	// degrades to an in-memory-only run rather than refusing to start,
	// since the ledger and engines are fully functional without it.
	var pgStore *store.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		var err error
		pgStore, err = store.Connect(ctx, dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
			pgStore = nil
		} else {
			defer pgStore.Close()
			if err := pgStore.InitSchema(ctx); err != nil {
				log.Printf("Warning: schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — running with in-memory ledger only")
	}

	l := ledger.New()
	if pgStore != nil {
		l.SetPersistSink(pgStore)
	}

	wheel := sched.New()
	go wheel.Run(ctx)

	eventBus := bus.New()

	tables := poker.NewRegistry(l, wheel, eventBus)
	duels := duel.NewRegistry(l, wheel, eventBus)
	wal := wallet.NewService(l)
	directory := agent.NewDirectory()

	// The wheel never references an aggregate directly (spec §4.8/§9); this
	// dispatcher is the one place that routes a fired deadline to whichever
	// registry owns it, by the "table:"/"duel:" aggregate-id prefix each
	// registry's aggregateID helper stamps on.
	go dispatchExpiries(ctx, wheel, tables, duels)

	r := transport.SetupRouter(directory, tables, duels, wal, eventBus)

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("ClawCasino listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func dispatchExpiries(ctx context.Context, wheel *sched.Wheel, tables *poker.Registry, duels *duel.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case ex, ok := <-wheel.Expired():
			if !ok {
				return
			}
			var err error
			switch {
			case strings.HasPrefix(ex.AggregateID, "table:"):
				err = tables.HandleExpiry(ex)
			case strings.HasPrefix(ex.AggregateID, "duel:"):
				err = duels.HandleExpiry(ex)
			default:
				log.Printf("clawcasino: unroutable expiry for aggregate %q", ex.AggregateID)
				continue
			}
			if err != nil {
				log.Printf("clawcasino: expiry %s for %s failed: %v", ex.Reason, ex.AggregateID, err)
			}
		}
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
