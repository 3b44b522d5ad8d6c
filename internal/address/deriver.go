package address

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of derived addresses kept in memory.
const DefaultCacheSize = 4096

// Deriver derives addresses for one program and caches the results.
type Deriver struct {
	programID []byte
	cache     *lru.Cache
}

// NewDeriver creates a Deriver for a base58 program id.
func NewDeriver(programID string, cacheSize int) (*Deriver, error) {
	pid, err := DecodeKey(programID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgramID, err)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create address cache: %w", err)
	}
	return &Deriver{programID: pid, cache: cache}, nil
}

// LaunchAddress derives the launch account for creator and index.
func (d *Deriver) LaunchAddress(creator string, index uint32) (string, error) {
	return d.derive(fmt.Sprintf("launch|%s|%d", creator, index), LaunchSeeds(creator, index))
}

// MintAddress derives the token mint for a seed.
func (d *Deriver) MintAddress(seed uint64) (string, error) {
	return d.derive(fmt.Sprintf("mint|%d", seed), MintSeeds(seed))
}

func (d *Deriver) derive(cacheKey string, seeds [][]byte) (string, error) {
	if v, ok := d.cache.Get(cacheKey); ok {
		return v.(string), nil
	}
	addr, _, err := DerivePDA(seeds, d.programID)
	if err != nil {
		return "", err
	}
	d.cache.Add(cacheKey, addr)
	return addr, nil
}

// HasSuffix reports whether the lowercase address ends with suffix.
// An empty suffix matches every address.
func HasSuffix(addr, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(addr), strings.ToLower(suffix))
}

// GrindMint searches seeds from start for a mint address ending with suffix.
// It stops after maxAttempts seeds or when ctx is done.
func (d *Deriver) GrindMint(ctx context.Context, suffix string, start, maxAttempts uint64) (uint64, string, error) {
	for i := uint64(0); i < maxAttempts; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", err
			}
		}
		seed := start + i
		// Bypass the cache: ground seeds are looked up once.
		addr, _, err := DerivePDA(MintSeeds(seed), d.programID)
		if err != nil {
			continue
		}
		if HasSuffix(addr, suffix) {
			return seed, addr, nil
		}
	}
	return 0, "", fmt.Errorf("no mint address ending with %q in %d attempts from seed %d", suffix, maxAttempts, start)
}
