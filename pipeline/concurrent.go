package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
)

// item is one slot of a prefetch or map_parallel buffer: an element, an
// error or the end marker. raw marks a map_parallel input whose transform
// has not completed.
type item struct {
	el  element
	err error
	end bool
	raw bool
}

// terminal reports whether nothing can follow the item.
func (it item) terminal() bool {
	return it.end || (it.err != nil && !errors.IsRecord(it.err))
}

// prefetchStage runs one background worker that pulls from upstream into a
// bounded channel. The worker starts on the first pull and stops at the end
// of the stream, on a terminal error, on pause and on close.
type prefetchStage struct {
	up   stage
	name string
	size int
	log  *logger.Logger
	base context.Context

	ch      chan item
	buf     []item
	running bool
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	pending *item
	ended   bool
}

func newPrefetchStage(ctx context.Context, up stage, name string, size int, log *logger.Logger) *prefetchStage {
	return &prefetchStage{
		up:   up,
		name: name,
		size: size,
		log:  log,
		base: ctx,
		ch:   make(chan item, size),
	}
}

func (s *prefetchStage) next(ctx context.Context) (element, bool, error) {
	if len(s.buf) > 0 {
		it := s.buf[0]
		s.buf[0] = item{}
		s.buf = s.buf[1:]
		return s.deliver(it)
	}
	if s.ended {
		return element{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return element{}, false, err
	}
	if !s.running {
		s.start()
	}
	select {
	case it := <-s.ch:
		return s.deliver(it)
	case <-s.done:
		select {
		case it := <-s.ch:
			return s.deliver(it)
		default:
		}
		// The worker was cancelled before producing a terminal item.
		s.running = false
		s.cancel()
		s.ended = true
		if err := s.base.Err(); err != nil {
			return element{}, false, err
		}
		return element{}, false, errors.Stream(s.name, fmt.Errorf("prefetch worker exited"))
	case <-ctx.Done():
		return element{}, false, ctx.Err()
	}
}

func (s *prefetchStage) deliver(it item) (element, bool, error) {
	if it.terminal() {
		s.ended = true
	}
	switch {
	case it.end:
		return element{}, false, nil
	case it.err != nil:
		return element{}, false, it.err
	default:
		return it.el, true, nil
	}
}

func (s *prefetchStage) start() {
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	s.log.Debug("prefetch worker started", logger.Fields(logger.FieldStage, s.name, "size", s.size))
	go s.run(ctx, s.stop, s.done)
}

func (s *prefetchStage) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		el, ok, err := s.up.next(ctx)
		if err != nil && isContextErr(ctx, err) {
			return
		}
		it := item{el: el, err: err, end: err == nil && !ok}

		select {
		case s.ch <- it:
		case <-stop:
			s.pending = &it
			return
		case <-ctx.Done():
			return
		}
		if it.terminal() {
			return
		}
	}
}

// pause stops the worker and moves everything it produced into buf, so
// that upstream state and buf together describe the exact position.
func (s *prefetchStage) pause() {
	if !s.running {
		return
	}
	close(s.stop)
	<-s.done
	s.cancel()
	s.running = false
drain:
	for {
		select {
		case it := <-s.ch:
			s.buf = append(s.buf, it)
		default:
			break drain
		}
	}
	if s.pending != nil {
		s.buf = append(s.buf, *s.pending)
		s.pending = nil
	}
	s.log.Debug("prefetch worker paused", logger.Fields(logger.FieldStage, s.name, "buffered", len(s.buf)))
}

type storedItem struct {
	Element storedElement
	Err     *errors.Diagnostic
	End     bool
	Raw     bool
}

type prefetchToken struct {
	Items []storedItem
	Ended bool
}

func (s *prefetchStage) state() ([]byte, error) {
	s.pause()
	tok := prefetchToken{Items: make([]storedItem, len(s.buf)), Ended: s.ended}
	for i, it := range s.buf {
		tok.Items[i] = storedItem{
			Element: storedElement{Value: it.el.value, Index: it.el.index},
			Err:     storedError(s.name, it.err),
			End:     it.end,
		}
	}
	return encodeToken(tok)
}

func (s *prefetchStage) restore(token []byte) error {
	var tok prefetchToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.buf = make([]item, len(tok.Items))
	for i, st := range tok.Items {
		s.buf[i] = item{
			el:  element{value: st.Element.Value, index: st.Element.Index},
			err: loadError(st.Err),
			end: st.End,
		}
	}
	s.ended = tok.Ended
	return nil
}

func (s *prefetchStage) close() error {
	if !s.running {
		return nil
	}
	s.cancel()
	<-s.done
	s.running = false
	s.log.Debug("prefetch worker stopped", logger.Fields(logger.FieldStage, s.name))
	return nil
}

// mapParallelStage applies fn to up to workers upstream elements at once
// and emits the results in upstream order.
type mapParallelStage struct {
	up      stage
	name    string
	fn      MapFunc
	workers int

	results []item
	cursor  int
	failure error
	done    bool
}

func (s *mapParallelStage) next(ctx context.Context) (element, bool, error) {
	for {
		if s.cursor < len(s.results) {
			if s.results[s.cursor].raw {
				if err := s.transform(ctx); err != nil {
					return element{}, false, err
				}
			}
			it := s.results[s.cursor]
			s.results[s.cursor] = item{}
			s.cursor++
			if it.err != nil && errors.Is(it.err, ErrSkip) {
				continue
			}
			return it.el, it.err == nil, it.err
		}
		if s.failure != nil {
			return element{}, false, s.failure
		}
		if s.done {
			return element{}, false, nil
		}
		if err := s.fill(ctx); err != nil {
			return element{}, false, err
		}
	}
}

// fill pulls the next round of inputs and transforms them concurrently.
func (s *mapParallelStage) fill(ctx context.Context) error {
	s.results = s.results[:0]
	s.cursor = 0
	for len(s.results) < s.workers {
		el, ok, err := s.up.next(ctx)
		if err != nil {
			if isContextErr(ctx, err) {
				if len(s.results) == 0 {
					return err
				}
				break
			}
			if errors.IsRecord(err) {
				s.results = append(s.results, item{err: err})
				continue
			}
			s.failure = err
			break
		}
		if !ok {
			s.done = true
			break
		}
		s.results = append(s.results, item{el: el, raw: true})
	}
	return s.transform(ctx)
}

// transform applies fn to every raw result concurrently. Results whose call
// was cancelled stay raw and ctx's error is returned, so they are retried
// on the next pull instead of being lost.
func (s *mapParallelStage) transform(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := s.cursor; i < len(s.results); i++ {
		if !s.results[i].raw {
			continue
		}
		wg.Add(1)
		go func(it *item) {
			defer wg.Done()
			out, err := safeCall(func() (Record, error) { return s.fn(ctx, it.el.value) })
			switch {
			case isContextErr(ctx, err):
				return
			case errors.Is(err, ErrSkip):
				it.err = ErrSkip
			case err != nil:
				it.err = recordError(s.name, it.el.index, err)
			default:
				it.el.value = out
			}
			it.raw = false
		}(&s.results[i])
	}
	wg.Wait()
	for _, it := range s.results[s.cursor:] {
		if it.raw {
			return ctx.Err()
		}
	}
	return nil
}

type mapParallelToken struct {
	Results []storedItem
	Failure *errors.Diagnostic
	Done    bool
}

func (s *mapParallelStage) state() ([]byte, error) {
	tok := mapParallelToken{Failure: storedError(s.name, s.failure), Done: s.done}
	for _, it := range s.results[s.cursor:] {
		if it.err != nil && errors.Is(it.err, ErrSkip) {
			continue
		}
		tok.Results = append(tok.Results, storedItem{
			Element: storedElement{Value: it.el.value, Index: it.el.index},
			Err:     storedError(s.name, it.err),
			Raw:     it.raw,
		})
	}
	return encodeToken(tok)
}

func (s *mapParallelStage) restore(token []byte) error {
	var tok mapParallelToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.results = make([]item, len(tok.Results))
	for i, st := range tok.Results {
		s.results[i] = item{
			el:  element{value: st.Element.Value, index: st.Element.Index},
			err: loadError(st.Err),
			raw: st.Raw,
		}
	}
	s.cursor = 0
	s.failure = loadError(tok.Failure)
	s.done = tok.Done
	return nil
}

func (s *mapParallelStage) close() error { return nil }
