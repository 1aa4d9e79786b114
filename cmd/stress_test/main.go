package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/adapter/storage"
	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/core/service"
)

const productID = "stress-phone"

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	operators := flag.Int("operators", 50, "concurrent operators racing for one order")
	flag.Parse()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: *operators + 10})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	store := storage.NewRedisAdapter(rdb, *operators)
	inventory := service.NewInventoryService(store, zap.NewNop())
	fulfillment := service.NewFulfillmentService(store, nil, zap.NewNop())

	// Seed one lot with a unit per operator and one single-unit order
	runID := time.Now().Format("150405.000")
	serials := make([]string, *operators)
	for i := range serials {
		serials[i] = fmt.Sprintf("STRESS-%s-%03d", runID, i)
	}
	lot, err := inventory.RegisterLot(ctx, service.RegisterLotInput{
		ProductID:     productID,
		PurchasePrice: decimal.NewFromInt(50),
		Serials:       serials,
	})
	if err != nil {
		log.Fatalf("failed to register lot: %v", err)
	}

	orderID := "stress-order-" + runID
	order := domain.Order{
		ID:                orderID,
		Items:             []domain.LineItem{{Item: &domain.OrderItem{ProductID: productID, Quantity: 1}}},
		Total:             decimal.NewFromInt(99),
		Status:            domain.OrderStatusPaid,
		FulfillmentStatus: domain.FulfillmentPending,
		CreatedAt:         time.Now(),
	}
	if err := store.Set(ctx, service.CollectionOrders, orderID, order); err != nil {
		log.Fatalf("failed to seed order: %v", err)
	}

	sessions := make([]string, *operators)
	for i := range sessions {
		view, err := fulfillment.OpenSession(ctx, orderID)
		if err != nil {
			log.Fatalf("failed to open session: %v", err)
		}
		if _, err := fulfillment.Scan(view.ID, serials[i]); err != nil {
			log.Fatalf("failed to scan: %v", err)
		}
		sessions[i] = view.ID
	}

	// Counters
	var successCount, rejectedCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()
	for i, id := range sessions {
		wg.Add(1)
		go func(n int, sessionID string) {
			defer wg.Done()

			actor := domain.Actor{ID: fmt.Sprintf("operator-%d", n)}
			_, err := fulfillment.Commit(ctx, sessionID, actor, "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrAlreadyFulfilled):
				rejectedCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("operator %d: %v", n, err)
			}
		}(i, id)
	}
	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Operators:        %d\n", *operators)
	fmt.Printf("Committed:        %d\n", success)
	fmt.Printf("Already shipped:  %d\n", rejected)
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == 1 && rejected == int32(*operators-1) {
		fmt.Println("PASS: Exactly one fulfillment committed")
	} else {
		fmt.Printf("FAIL: Expected 1 commit/%d rejections, got %d/%d\n", *operators-1, success, rejected)
	}

	var final domain.Lot
	if err := store.Get(ctx, service.CollectionLots, lot.ID, &final); err != nil {
		log.Fatalf("failed to read lot: %v", err)
	}
	fmt.Printf("Lot quantitySold: %d\n", final.QuantitySold)
	if final.QuantitySold == 1 {
		fmt.Println("PASS: Exactly one unit sold")
	} else {
		fmt.Printf("FAIL: Expected 1 unit sold, got %d\n", final.QuantitySold)
	}
}
