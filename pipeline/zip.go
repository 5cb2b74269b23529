package pipeline

import (
	"context"

	"github.com/kbukum/datapipe/errors"
)

// zipStage pulls one element from each input per call and combines them
// into a []Record. It ends as soon as any input ends; in strict mode the
// other inputs must end at the same point. A record error from any input
// fails the whole round: the other inputs still advance by one, so rows
// stay aligned.
type zipStage struct {
	ups      []stage
	name     string
	strict   bool
	slots    []*element
	roundErr error
	done     bool
}

func (s *zipStage) next(ctx context.Context) (element, bool, error) {
	if s.done {
		return element{}, false, nil
	}
	for i, up := range s.ups {
		if s.slots[i] != nil {
			continue
		}
		el, ok, err := up.next(ctx)
		if err != nil {
			if !errors.IsRecord(err) {
				return element{}, false, err
			}
			if s.roundErr == nil {
				s.roundErr = err
			}
			s.slots[i] = &element{index: errors.NoPosition}
			continue
		}
		if !ok {
			s.done = true
			s.roundErr = nil
			if s.strict {
				return element{}, false, s.checkEqualLength(ctx, i)
			}
			return element{}, false, nil
		}
		s.slots[i] = &el
	}

	if err := s.roundErr; err != nil {
		s.roundErr = nil
		clear(s.slots)
		return element{}, false, err
	}

	values := make([]Record, len(s.slots))
	for i, el := range s.slots {
		values[i] = el.value
	}
	out := element{value: values, index: s.slots[0].index}
	clear(s.slots)
	return out, true, nil
}

// checkEqualLength is called when input ended first. Inputs before it
// already produced an element for this round; inputs after it must end too.
func (s *zipStage) checkEqualLength(ctx context.Context, ended int) error {
	if ended > 0 {
		return errors.StreamLengthMismatch(s.name, ended)
	}
	for j := ended + 1; j < len(s.ups); j++ {
		_, ok, err := s.ups[j].next(ctx)
		if err != nil && !errors.IsRecord(err) {
			return err
		}
		if ok || err != nil {
			return errors.StreamLengthMismatch(s.name, ended)
		}
	}
	return nil
}

type zipToken struct {
	Slots    []storedElement
	Present  []bool
	RoundErr *errors.Diagnostic
	Done     bool
}

func (s *zipStage) state() ([]byte, error) {
	tok := zipToken{
		Slots:   make([]storedElement, len(s.slots)),
		Present:  make([]bool, len(s.slots)),
		RoundErr: storedError(s.name, s.roundErr),
		Done:     s.done,
	}
	for i, el := range s.slots {
		if el != nil {
			tok.Slots[i] = storedElement{Value: el.value, Index: el.index}
			tok.Present[i] = true
		}
	}
	return encodeToken(tok)
}

func (s *zipStage) restore(token []byte) error {
	var tok zipToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	if len(tok.Present) != len(s.slots) || len(tok.Slots) != len(s.slots) {
		return errors.CheckpointMismatch("zip input count differs")
	}
	for i, present := range tok.Present {
		if present {
			s.slots[i] = &element{value: tok.Slots[i].Value, index: tok.Slots[i].Index}
		}
	}
	s.roundErr = loadError(tok.RoundErr)
	s.done = tok.Done
	return nil
}

func (s *zipStage) close() error { return nil }
