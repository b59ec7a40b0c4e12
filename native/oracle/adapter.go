package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrNoPriceFeed indicates the asset has no registered push feed and is
	// not the TWAP-priced reward asset.
	ErrNoPriceFeed = errors.New("oracle: no price feed configured")
	// ErrPoolMisconfigured indicates the reward asset is not one of the
	// TWAP pool's two constituent assets.
	ErrPoolMisconfigured = errors.New("oracle: reward asset not in pool")
	ErrInvalidAnswer     = errors.New("oracle: feed answer must be positive")
	ErrNilPool           = errors.New("oracle: twap pool not configured")
	ErrZeroLookback      = errors.New("oracle: lookback window must be positive")
)

// usdScale is the 18-decimal fixed-point unit all USD values are expressed in.
var usdScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceFeed is the push-style price source consumed for every asset except
// the reward asset. Answers are denominated in USD at the feed's own decimal
// precision.
type PriceFeed interface {
	LatestAnswer() (*big.Int, error)
	Decimals() (uint8, error)
}

// TwapPool exposes the liquidity pool observations backing the reward asset
// price. ObserveTickCumulatives returns the cumulative tick at the start and
// end of the lookback window.
type TwapPool interface {
	Assets() (asset0 [20]byte, asset1 [20]byte)
	ObserveTickCumulatives(secondsAgo uint32) (startCumulative int64, endCumulative int64, err error)
}

// Adapter converts asset amounts into 18-decimal USD values. The reward asset
// is priced via a time-weighted average price pulled from the pool; every
// other asset goes through its registered push feed. Valuations are pure
// reads of current collaborator state, never cached.
type Adapter struct {
	mu          sync.RWMutex
	feeds       map[[20]byte]PriceFeed
	rewardAsset [20]byte
	pool        TwapPool
	secondsAgo  uint32
}

// NewAdapter builds an adapter for the supplied reward asset and TWAP pool.
func NewAdapter(rewardAsset [20]byte, pool TwapPool, secondsAgo uint32) (*Adapter, error) {
	if secondsAgo == 0 {
		return nil, ErrZeroLookback
	}
	return &Adapter{
		feeds:       make(map[[20]byte]PriceFeed),
		rewardAsset: rewardAsset,
		pool:        pool,
		secondsAgo:  secondsAgo,
	}, nil
}

// RewardAsset returns the TWAP-priced asset identifier.
func (a *Adapter) RewardAsset() [20]byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rewardAsset
}

// SetLookback updates the TWAP lookback window.
func (a *Adapter) SetLookback(secondsAgo uint32) error {
	if secondsAgo == 0 {
		return ErrZeroLookback
	}
	a.mu.Lock()
	a.secondsAgo = secondsAgo
	a.mu.Unlock()
	return nil
}

// SetFeed registers or replaces the push feed for an asset.
func (a *Adapter) SetFeed(asset [20]byte, feed PriceFeed) {
	if feed == nil {
		return
	}
	a.mu.Lock()
	a.feeds[asset] = feed
	a.mu.Unlock()
}

// RemoveFeed drops the feed binding for an asset.
func (a *Adapter) RemoveFeed(asset [20]byte) {
	a.mu.Lock()
	delete(a.feeds, asset)
	a.mu.Unlock()
}

// Feed returns the registered feed for an asset, if any.
func (a *Adapter) Feed(asset [20]byte) (PriceFeed, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	feed, ok := a.feeds[asset]
	return feed, ok
}

// ValueInUSD converts amount units of asset into an 18-decimal USD value.
func (a *Adapter) ValueInUSD(asset [20]byte, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	a.mu.RLock()
	reward := a.rewardAsset
	pool := a.pool
	secondsAgo := a.secondsAgo
	feed, hasFeed := a.feeds[asset]
	a.mu.RUnlock()

	if asset == reward {
		return a.rewardValueInUSD(pool, secondsAgo, amount)
	}
	if !hasFeed {
		return nil, fmt.Errorf("%w: asset %x", ErrNoPriceFeed, asset)
	}
	return feedValue(feed, amount)
}

// rewardValueInUSD quotes the amount into the pool's paired asset via the
// window-average tick and converts the paired amount through its push feed.
func (a *Adapter) rewardValueInUSD(pool TwapPool, secondsAgo uint32, amount *big.Int) (*big.Int, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	asset0, asset1 := pool.Assets()
	reward := a.RewardAsset()
	var paired [20]byte
	switch reward {
	case asset0:
		paired = asset1
	case asset1:
		paired = asset0
	default:
		return nil, fmt.Errorf("%w: %x", ErrPoolMisconfigured, reward)
	}
	startCum, endCum, err := pool.ObserveTickCumulatives(secondsAgo)
	if err != nil {
		return nil, fmt.Errorf("oracle: observe pool: %w", err)
	}
	tick := meanTick(startCum, endCum, secondsAgo)
	pairedAmount := QuoteAtTick(tick, amount, reward, paired)

	pairedFeed, ok := a.Feed(paired)
	if !ok {
		return nil, fmt.Errorf("%w: paired asset %x", ErrNoPriceFeed, paired)
	}
	return feedValue(pairedFeed, pairedAmount)
}

// meanTick derives the arithmetic-mean tick over the window, rounding toward
// negative infinity when the delta is negative and does not divide evenly.
func meanTick(startCumulative, endCumulative int64, secondsAgo uint32) int32 {
	delta := endCumulative - startCumulative
	window := int64(secondsAgo)
	tick := delta / window
	if delta < 0 && delta%window != 0 {
		tick--
	}
	return int32(tick)
}

// feedValue computes amount * normalized(answer) / 1e18.
func feedValue(feed PriceFeed, amount *big.Int) (*big.Int, error) {
	answer, err := feed.LatestAnswer()
	if err != nil {
		return nil, fmt.Errorf("oracle: latest answer: %w", err)
	}
	if answer == nil || answer.Sign() <= 0 {
		return nil, ErrInvalidAnswer
	}
	decimals, err := feed.Decimals()
	if err != nil {
		return nil, fmt.Errorf("oracle: feed decimals: %w", err)
	}
	normalized := normalizeAnswer(answer, decimals)
	usd := new(big.Int).Mul(amount, normalized)
	return usd.Div(usd, usdScale), nil
}

// normalizeAnswer rescales a feed answer to 18-decimal fixed point.
func normalizeAnswer(answer *big.Int, decimals uint8) *big.Int {
	if decimals == 18 {
		return new(big.Int).Set(answer)
	}
	if decimals < 18 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
		return new(big.Int).Mul(answer, scale)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
	return new(big.Int).Div(answer, scale)
}
