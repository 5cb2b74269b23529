package pipeline

import (
	"context"

	"github.com/kbukum/datapipe/errors"
)

// mapStage applies a MapFunc to each element. An element whose call was
// cut short by cancellation is kept in pending and retried on the next pull.
type mapStage struct {
	up      stage
	name    string
	fn      MapFunc
	pending *element
}

func (s *mapStage) next(ctx context.Context) (element, bool, error) {
	for {
		el, ok, err := takePending(ctx, &s.pending, s.up)
		if err != nil || !ok {
			return el, ok, err
		}
		out, err := safeCall(func() (Record, error) { return s.fn(ctx, el.value) })
		if isContextErr(ctx, err) {
			s.pending = &el
			return element{}, false, err
		}
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return element{}, false, recordError(s.name, el.index, err)
		}
		el.value = out
		return el, true, nil
	}
}

func (s *mapStage) state() ([]byte, error)     { return pendingState(s.pending) }
func (s *mapStage) restore(token []byte) error { return restorePending(token, &s.pending) }
func (s *mapStage) close() error               { return nil }

// filterStage pulls until a record satisfies the predicate. Like mapStage
// it keeps the element of a cancelled call in pending.
type filterStage struct {
	up      stage
	name    string
	fn      FilterFunc
	pending *element
}

func (s *filterStage) next(ctx context.Context) (element, bool, error) {
	for {
		el, ok, err := takePending(ctx, &s.pending, s.up)
		if err != nil || !ok {
			return el, ok, err
		}
		keep, err := safeCall(func() (bool, error) { return s.fn(ctx, el.value) })
		if isContextErr(ctx, err) {
			s.pending = &el
			return element{}, false, err
		}
		if err != nil {
			return element{}, false, recordError(s.name, el.index, err)
		}
		if keep {
			return el, true, nil
		}
	}
}

func (s *filterStage) state() ([]byte, error)     { return pendingState(s.pending) }
func (s *filterStage) restore(token []byte) error { return restorePending(token, &s.pending) }
func (s *filterStage) close() error               { return nil }

// takePending returns the held element if there is one, otherwise pulls up.
func takePending(ctx context.Context, pending **element, up stage) (element, bool, error) {
	if el := *pending; el != nil {
		*pending = nil
		return *el, true, nil
	}
	return up.next(ctx)
}

// pendingState contributes a token only while an element is held, so
// checkpoints of map and filter are usually empty.
func pendingState(pending *element) ([]byte, error) {
	if pending == nil {
		return nil, nil
	}
	return encodeToken(storedElement{Value: pending.value, Index: pending.index})
}

func restorePending(token []byte, pending **element) error {
	var st storedElement
	if err := decodeToken(token, &st); err != nil {
		return err
	}
	*pending = &element{value: st.Value, index: st.Index}
	return nil
}

type counterToken struct {
	N int64
}

// takeStage yields at most n records and never pulls past the n-th.
// Record errors pass through without counting.
type takeStage struct {
	up    stage
	n     int64
	taken int64
}

func (s *takeStage) next(ctx context.Context) (element, bool, error) {
	if s.taken >= s.n {
		return element{}, false, nil
	}
	el, ok, err := s.up.next(ctx)
	if err != nil || !ok {
		return el, ok, err
	}
	s.taken++
	return el, true, nil
}

func (s *takeStage) state() ([]byte, error) { return encodeToken(counterToken{N: s.taken}) }

func (s *takeStage) restore(token []byte) error {
	var tok counterToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.taken = tok.N
	return nil
}

func (s *takeStage) close() error { return nil }

// skipStage discards the first n upstream arrivals. Record errors among
// them are discarded too.
type skipStage struct {
	up      stage
	n       int64
	skipped int64
}

func (s *skipStage) next(ctx context.Context) (element, bool, error) {
	for s.skipped < s.n {
		_, ok, err := s.up.next(ctx)
		if err != nil && !errors.IsRecord(err) {
			return element{}, false, err
		}
		if err == nil && !ok {
			return element{}, false, nil
		}
		s.skipped++
	}
	return s.up.next(ctx)
}

func (s *skipStage) state() ([]byte, error) { return encodeToken(counterToken{N: s.skipped}) }

func (s *skipStage) restore(token []byte) error {
	var tok counterToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.skipped = tok.N
	return nil
}

func (s *skipStage) close() error { return nil }

// shardStage keeps the arrivals whose ordinal modulo shards equals index.
// Record errors are arrivals too, so every record and every error lands on
// exactly one shard.
type shardStage struct {
	up       stage
	shards   int64
	index    int64
	arrivals int64
}

func (s *shardStage) next(ctx context.Context) (element, bool, error) {
	for {
		el, ok, err := s.up.next(ctx)
		if err != nil && !errors.IsRecord(err) {
			return element{}, false, err
		}
		if err == nil && !ok {
			return element{}, false, nil
		}
		ordinal := s.arrivals
		s.arrivals++
		if ordinal%s.shards != s.index {
			continue
		}
		return el, ok, err
	}
}

func (s *shardStage) state() ([]byte, error) { return encodeToken(counterToken{N: s.arrivals}) }

func (s *shardStage) restore(token []byte) error {
	var tok counterToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.arrivals = tok.N
	return nil
}

func (s *shardStage) close() error { return nil }
