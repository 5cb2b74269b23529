package pipeline

import (
	"context"
	"math/rand/v2"

	"github.com/kbukum/datapipe/errors"
)

// shuffleStage fills a buffer of up to size elements and emits a random
// one on each pull. Generator state and buffer are checkpointed, so a
// restore replays exactly even when the seed was drawn at random.
type shuffleStage struct {
	up     stage
	size   int
	pcg    *rand.PCG
	rng    *rand.Rand
	buf    []element
	upDone bool
}

func newShuffleStage(up stage, size int, seed uint64) *shuffleStage {
	if seed == 0 {
		seed = rand.Uint64()
	}
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &shuffleStage{up: up, size: size, pcg: pcg, rng: rand.New(pcg)}
}

func (s *shuffleStage) next(ctx context.Context) (element, bool, error) {
	for !s.upDone && len(s.buf) < s.size {
		el, ok, err := s.up.next(ctx)
		if err != nil {
			return element{}, false, err
		}
		if !ok {
			s.upDone = true
			break
		}
		s.buf = append(s.buf, el)
	}
	if len(s.buf) == 0 {
		return element{}, false, nil
	}
	j := s.rng.IntN(len(s.buf))
	last := len(s.buf) - 1
	el := s.buf[j]
	s.buf[j] = s.buf[last]
	s.buf[last] = element{}
	s.buf = s.buf[:last]
	return el, true, nil
}

type shuffleToken struct {
	Generator []byte
	Buffer    []storedElement
	UpDone    bool
}

func (s *shuffleStage) state() ([]byte, error) {
	gen, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return encodeToken(shuffleToken{Generator: gen, Buffer: storeElements(s.buf), UpDone: s.upDone})
}

func (s *shuffleStage) restore(token []byte) error {
	var tok shuffleToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	if len(tok.Buffer) > s.size {
		return errors.CheckpointMismatch("shuffle buffer larger than configured size")
	}
	if err := s.pcg.UnmarshalBinary(tok.Generator); err != nil {
		return err
	}
	s.buf = loadElements(tok.Buffer)
	s.upDone = tok.UpDone
	return nil
}

func (s *shuffleStage) close() error { return nil }
