package pipeline

import "context"

// batchStage groups size consecutive records into one []Record. Records
// already collected stay pending across record errors, so an error inside
// a group does not split it.
type batchStage struct {
	up      stage
	size    int
	drop    bool
	pending []element
	done    bool
}

func (s *batchStage) next(ctx context.Context) (element, bool, error) {
	if s.done {
		return element{}, false, nil
	}
	for len(s.pending) < s.size {
		el, ok, err := s.up.next(ctx)
		if err != nil {
			return element{}, false, err
		}
		if !ok {
			s.done = true
			if len(s.pending) == 0 || s.drop {
				s.pending = nil
				return element{}, false, nil
			}
			break
		}
		s.pending = append(s.pending, el)
	}
	return s.emit(), true, nil
}

func (s *batchStage) emit() element {
	values := make([]Record, len(s.pending))
	for i, el := range s.pending {
		values[i] = el.value
	}
	out := element{value: values, index: s.pending[0].index}
	s.pending = nil
	return out
}

type batchToken struct {
	Pending []storedElement
	Done    bool
}

func (s *batchStage) state() ([]byte, error) {
	return encodeToken(batchToken{Pending: storeElements(s.pending), Done: s.done})
}

func (s *batchStage) restore(token []byte) error {
	var tok batchToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	s.pending = loadElements(tok.Pending)
	s.done = tok.Done
	return nil
}

func (s *batchStage) close() error { return nil }
