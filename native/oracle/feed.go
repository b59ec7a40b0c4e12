package oracle

import (
	"math/big"
	"sync"
)

// StaticFeed is a push feed with an operator-set answer. Local deployments
// and tests use it in place of an external aggregator.
type StaticFeed struct {
	mu       sync.RWMutex
	answer   *big.Int
	decimals uint8
}

// NewStaticFeed builds a feed reporting the supplied answer at the given
// decimal precision.
func NewStaticFeed(answer *big.Int, decimals uint8) *StaticFeed {
	feed := &StaticFeed{decimals: decimals, answer: big.NewInt(0)}
	if answer != nil {
		feed.answer = new(big.Int).Set(answer)
	}
	return feed
}

// SetAnswer replaces the reported answer.
func (f *StaticFeed) SetAnswer(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if answer == nil {
		f.answer = big.NewInt(0)
		return
	}
	f.answer = new(big.Int).Set(answer)
}

// LatestAnswer implements PriceFeed.
func (f *StaticFeed) LatestAnswer() (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.answer), nil
}

// Decimals implements PriceFeed.
func (f *StaticFeed) Decimals() (uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decimals, nil
}

// StaticPool is a TwapPool whose tick never moves. The cumulative delta over
// any window is tick*window, so the window-average tick is exactly the set
// tick.
type StaticPool struct {
	mu     sync.RWMutex
	asset0 [20]byte
	asset1 [20]byte
	tick   int32
}

// NewStaticPool builds a fixed-tick pool over the supplied asset pair.
func NewStaticPool(asset0, asset1 [20]byte, tick int32) *StaticPool {
	return &StaticPool{asset0: asset0, asset1: asset1, tick: tick}
}

// SetTick repositions the pool.
func (p *StaticPool) SetTick(tick int32) {
	p.mu.Lock()
	p.tick = tick
	p.mu.Unlock()
}

// Assets implements TwapPool.
func (p *StaticPool) Assets() ([20]byte, [20]byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.asset0, p.asset1
}

// ObserveTickCumulatives implements TwapPool.
func (p *StaticPool) ObserveTickCumulatives(secondsAgo uint32) (int64, int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return 0, int64(p.tick) * int64(secondsAgo), nil
}
