package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/payflowhq/payflow"
	"github.com/payflowhq/payflow/model"
)

type simulationResult struct {
	Created  int                  `json:"created"`
	Replayed int                  `json:"replayed"`
	Failed   int                  `json:"failed"`
	Payment  *model.PaymentRecord `json:"payment,omitempty"`
}

// simulate fires concurrency identical requests at the core, the way a
// double-clicked pay button would, then waits for the payment to settle.
func simulate(ctx context.Context, p *payflow.PayFlow, req model.PaymentRequest, concurrency int, wait time.Duration) (simulationResult, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result simulationResult
		id     string
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, replay, err := p.InitiatePayment(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				logrus.Warnf("simulated request failed: %v", err)
			case replay:
				result.Replayed++
			default:
				result.Created++
				id = record.ID
			}
		}()
	}
	wg.Wait()

	if id == "" {
		return result, nil
	}

	deadline := time.Now().Add(wait)
	for {
		record, err := p.GetPayment(ctx, id)
		if err != nil {
			return result, err
		}
		result.Payment = record
		if record == nil || record.Status.IsTerminal() || time.Now().After(deadline) {
			return result, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func simulateCommands(p *payflowInstance) *cobra.Command {
	var (
		key         string
		concurrency int
		amount      string
		currency    string
		wait        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "send concurrent duplicate payment requests and report what happened",
		Run: func(cmd *cobra.Command, args []string) {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				log.Fatalf("invalid amount %q: %v", amount, err)
			}
			if key == "" {
				key = uuid.New().String()
			}
			req := model.PaymentRequest{
				Amount:         value,
				Currency:       currency,
				SourceID:       "acc_simulated_source",
				DestinationID:  "acc_simulated_destination",
				IdempotencyKey: key,
			}

			result, err := simulate(context.Background(), p.payflow, req, concurrency, wait)
			if err != nil {
				log.Fatal(err)
			}
			data, err := json.MarshalIndent(result, "", "    ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(data))
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "idempotency key shared by every request (random when empty)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "number of concurrent requests")
	cmd.Flags().StringVar(&amount, "amount", "100.00", "payment amount")
	cmd.Flags().StringVar(&currency, "currency", "USD", "payment currency")
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to wait for settlement")
	return cmd
}
