package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Simulator publishes random-walk market data for a set of symbols so the
// service is usable without an upstream feed. Each symbol drives three
// channels: ticker.<SYM>, book.<SYM>, and trades.<SYM>. Payloads carry the
// same {"raw": ...} envelope an upstream feed would, so bindings treat
// simulated and real channels identically.
type Simulator struct {
	hub      *Hub
	symbols  []string
	interval time.Duration
	logger   *slog.Logger

	rng    *rand.Rand
	prices map[string]float64
}

func NewSimulator(hub *Hub, symbols []string, interval time.Duration, logger *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Simulator{
		hub:      hub,
		symbols:  symbols,
		interval: interval,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		prices:   make(map[string]float64),
	}
	for _, sym := range symbols {
		s.prices[sym] = 100 + s.rng.Float64()*900
	}
	return s
}

// Run publishes one tick per symbol per interval until the context ends.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("feed simulator started",
		slog.Int("symbols", len(s.symbols)),
		slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("feed simulator stopped")
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulator) tick() {
	now := time.Now().UnixMilli()
	for _, sym := range s.symbols {
		last := s.prices[sym]
		next := last * (1 + (s.rng.Float64()-0.5)*0.004)
		s.prices[sym] = next

		s.publish("ticker."+sym, tickerPayload(sym, last, next, now))
		s.publish("book."+sym, s.bookPayload(sym, next, now))
		s.publish("trades."+sym, s.tradePayload(sym, next, now))
	}
}

func (s *Simulator) publish(channelKey string, data map[string]any) {
	payload, err := json.Marshal(map[string]any{"raw": data})
	if err != nil {
		return
	}
	if err := s.hub.Publish(channelKey, payload); err != nil {
		s.logger.Warn("simulator publish failed",
			slog.String("channelKey", channelKey), slog.String("error", err.Error()))
	}
}

func tickerPayload(sym string, prev, last float64, ts int64) map[string]any {
	return map[string]any{
		"type":   "ticker",
		"symbol": sym,
		"data": map[string]any{
			"last":   round2(last),
			"open":   round2(prev),
			"change": round2(last - prev),
			"ts":     ts,
		},
	}
}

func (s *Simulator) bookPayload(sym string, mid float64, ts int64) map[string]any {
	const levels = 5
	bids := make([][2]float64, levels)
	asks := make([][2]float64, levels)
	for i := 0; i < levels; i++ {
		step := mid * 0.0005 * float64(i+1)
		bids[i] = [2]float64{round2(mid - step), round2(s.rng.Float64() * 10)}
		asks[i] = [2]float64{round2(mid + step), round2(s.rng.Float64() * 10)}
	}
	return map[string]any{
		"type":   "book",
		"symbol": sym,
		"data": map[string]any{
			"bids": bids,
			"asks": asks,
			"ts":   ts,
		},
	}
}

func (s *Simulator) tradePayload(sym string, px float64, ts int64) map[string]any {
	side := "buy"
	if s.rng.Intn(2) == 0 {
		side = "sell"
	}
	return map[string]any{
		"type":   "trade",
		"symbol": sym,
		"data": map[string]any{
			"price": round2(px),
			"size":  round2(s.rng.Float64() * 2),
			"side":  side,
			"ts":    ts,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
