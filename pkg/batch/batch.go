// Package batch generates runs of consecutive-nonce programs in parallel.
// Every program gets its own generator, so the results are identical to
// generating the nonces one after another.
package batch

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"mythra/pkg/blake2gen"
	"mythra/pkg/errors"
	"mythra/pkg/superscalar"

	"golang.org/x/sync/errgroup"
)

// GenerateRange generates the programs for nonces first .. first+count-1
// and returns them in nonce order. At most workers programs are generated
// at once; workers <= 0 means GOMAXPROCS. ctx is checked before each
// program is started, never in the middle of one.
func GenerateRange(ctx context.Context, seed []byte, first uint32, count, workers int) ([]*superscalar.Program, error) {
	if count < 0 {
		return nil, errors.PreconditionErrorf("negative program count %d", count)
	}
	if uint64(first)+uint64(count) > math.MaxUint32+1 {
		return nil, errors.PreconditionErrorf("nonce range %d+%d overflows 32 bits", first, count)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	programs := make([]*superscalar.Program, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	stopped := false
	for i := 0; i < count; i++ {
		if gctx.Err() != nil {
			stopped = true
			break
		}
		nonce := first + uint32(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gen, err := blake2gen.New(seed, nonce)
			if err != nil {
				return fmt.Errorf("nonce %d: %w", nonce, err)
			}
			programs[i] = superscalar.Generate(gen)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// cancelled before every program was started
	if stopped {
		return nil, ctx.Err()
	}
	return programs, nil
}
