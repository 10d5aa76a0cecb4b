package topup

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Status is the lifecycle state of a top-up attempt. A record starts Pending
// and moves exactly once to Success or Failed; terminal states never change.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// SaleOrderID is the merchant-generated correlation key sent to the bank and
// echoed back on every phase and the callback. The bank requires a
// numeric-looking string; the named type keeps it from mixing with other ids.
type SaleOrderID string

// Record is one top-up attempt. Records are never deleted; they are the
// audit trail of every interaction with the gateway.
type Record struct {
	ID              string
	UserID          string
	Amount          int64
	Status          Status
	SaleOrderID     SaleOrderID
	RefID           string
	SaleReferenceID string
	CreatedAt       time.Time
}

// saleOrderGenerator issues correlation keys of the form
// <unix milliseconds><3 random digits>. Keys issued within the same
// millisecond are guaranteed pairwise distinct.
type saleOrderGenerator struct {
	mu     sync.Mutex
	millis int64
	used   map[int]bool
	rng    *rand.Rand
}

func newSaleOrderGenerator() *saleOrderGenerator {
	return &saleOrderGenerator{
		used: make(map[int]bool),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next produces a fresh SaleOrderID for the given instant.
func (g *saleOrderGenerator) Next(now time.Time) SaleOrderID {
	g.mu.Lock()
	defer g.mu.Unlock()

	// g.millis only ever advances. A roll-forward after exhausting a
	// millisecond must survive later calls whose wall clock still reads the
	// exhausted instant, or suffixes would be handed out twice.
	if ms := now.UnixMilli(); ms > g.millis {
		g.millis = ms
		g.used = make(map[int]bool)
	}
	// 900 possible suffixes per millisecond; roll the counter forward in the
	// pathological case where all of them were handed out.
	if len(g.used) >= 900 {
		g.millis++
		g.used = make(map[int]bool)
	}

	suffix := 100 + g.rng.Intn(900)
	for g.used[suffix] {
		suffix = 100 + g.rng.Intn(900)
	}
	g.used[suffix] = true

	return SaleOrderID(fmt.Sprintf("%d%03d", g.millis, suffix))
}
