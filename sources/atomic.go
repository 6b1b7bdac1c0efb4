package sources

import (
	"math"
	"sync/atomic"
)

// atomicFloat is read by reader goroutines while Tick may change it.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
