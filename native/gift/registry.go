package gift

import "fmt"

// assetRegistry tracks the allowed fungible assets as an arena plus an index
// map, so removal is a swap-with-last followed by truncation. The native
// currency is implicitly allowed and never stored here.
type assetRegistry struct {
	entries [][20]byte
	index   map[[20]byte]int
}

func newAssetRegistry() *assetRegistry {
	return &assetRegistry{index: make(map[[20]byte]int)}
}

func (r *assetRegistry) Contains(asset [20]byte) bool {
	_, ok := r.index[asset]
	return ok
}

func (r *assetRegistry) Add(asset [20]byte) error {
	if asset == ([20]byte{}) {
		return ErrZeroAddress
	}
	if _, ok := r.index[asset]; ok {
		return fmt.Errorf("%w: %x", ErrAssetAlreadyAllowed, asset)
	}
	r.index[asset] = len(r.entries)
	r.entries = append(r.entries, asset)
	return nil
}

func (r *assetRegistry) Remove(asset [20]byte) error {
	pos, ok := r.index[asset]
	if !ok {
		return fmt.Errorf("%w: %x", ErrAssetNotAllowed, asset)
	}
	last := len(r.entries) - 1
	if pos != last {
		moved := r.entries[last]
		r.entries[pos] = moved
		r.index[moved] = pos
	}
	r.entries = r.entries[:last]
	delete(r.index, asset)
	return nil
}

// List returns a copy of the allowed assets in arena order.
func (r *assetRegistry) List() [][20]byte {
	return append([][20]byte(nil), r.entries...)
}

func (r *assetRegistry) Len() int {
	return len(r.entries)
}
