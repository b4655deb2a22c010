package replay

import (
	"context"
	"hash/fnv"
	"iter"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
)

const shardBuffer = 256

// FoldSharded folds events across workers goroutines, routing each event by entity so
// per-entity order is preserved. The result, including which fatal error is reported,
// matches Fold over the same sequence: a shard that fails keeps draining while the router
// stops forwarding events past the lowest failing seq, and the lowest-seq error wins.
func FoldSharded(ctx context.Context, events iter.Seq2[models.LedgerEvent, error], workers int, opts Options) (*Snapshot, error) {
	if workers <= 1 {
		return Fold(ctx, events, opts)
	}

	g, gctx := errgroup.WithContext(ctx)
	shards := make([]*shard, workers)
	var lowest atomic.Int64

	for i := range shards {
		s := &shard{in: make(chan models.LedgerEvent, shardBuffer), folder: NewFolder(opts)}
		shards[i] = s
		g.Go(func() error {
			s.run(&lowest)
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, s := range shards {
				close(s.in)
			}
		}()
		for event, err := range events {
			if err != nil {
				return err
			}
			if limit := lowest.Load(); limit != 0 && event.Seq > limit {
				return nil
			}
			target := shards[shardFor(event, workers)]
			select {
			case target.in <- event:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	waitErr := g.Wait()

	// Every delivered event precedes a router failure, so a fold error outranks it.
	var failed *shard
	for _, s := range shards {
		if s.err != nil && (failed == nil || s.errSeq < failed.errSeq) {
			failed = s
		}
	}
	if failed != nil {
		return nil, failed.err
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return mergeShards(shards), nil
}

type shard struct {
	in     chan models.LedgerEvent
	folder *Folder
	err    error
	errSeq int64
}

func (s *shard) run(lowest *atomic.Int64) {
	for event := range s.in {
		if s.err != nil {
			continue
		}
		if err := s.folder.Apply(event); err != nil {
			s.err = err
			s.errSeq = event.Seq
			lowerTo(lowest, event.Seq)
		}
	}
}

func lowerTo(target *atomic.Int64, seq int64) {
	for {
		current := target.Load()
		if current != 0 && current <= seq {
			return
		}
		if target.CompareAndSwap(current, seq) {
			return
		}
	}
}

func shardFor(event models.LedgerEvent, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(event.EntityType))
	_, _ = h.Write(event.EntityID[:])
	return int(h.Sum32() % uint32(workers))
}

func mergeShards(shards []*shard) *Snapshot {
	out := newSnapshot()
	for _, s := range shards {
		snap := s.folder.Snapshot()
		for id, state := range snap.Inventory {
			out.Inventory[id] = state
		}
		for id, state := range snap.Orders {
			out.Orders[id] = state
		}
		for id, state := range snap.Shipments {
			out.Shipments[id] = state
		}
		for key := range snap.Touched {
			out.Touched[key] = struct{}{}
		}
		out.Transitions = append(out.Transitions, snap.Transitions...)
		out.EventsApplied += snap.EventsApplied
		out.EventsInWindow += snap.EventsInWindow
		out.EventsSkipped += snap.EventsSkipped
		if snap.LastSeq > out.LastSeq {
			out.LastSeq = snap.LastSeq
		}
	}
	sort.Slice(out.Transitions, func(i, j int) bool {
		return out.Transitions[i].LedgerSeq < out.Transitions[j].LedgerSeq
	})
	return out
}
