package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region types
// ErrTooFewSequences is returned when the index cannot fill a single batch.
var ErrTooFewSequences = errors.New("too few sequences for one batch")

// Source yields batches of equal-length clips without end.
type Source interface {
	Next(ctx context.Context) (tensor.Batch, error)
}

// SourceConfig controls clip extraction.
type SourceConfig struct {
	SeqLen     int // frames per clip (n_past + n_future)
	BatchSize  int
	ImageWidth int
	Channels   int
}

// SequenceSource cycles over manifest entries. Each epoch visits the entries
// in a fresh permutation; a trailing partial batch is dropped. Every clip
// starts at a random offset inside its sequence.
type SequenceSource struct {
	entries []Entry
	config  SourceConfig
	rng     *rand.Rand

	order   []int
	pos     int
	emitted int
}

// #endregion types

// #region constructor
// NewSequenceSource builds a source over entries. rng drives both the epoch
// permutation and the start offsets.
func NewSequenceSource(entries []Entry, config SourceConfig, rng *rand.Rand) (*SequenceSource, error) {
	if config.SeqLen < 1 || config.BatchSize < 1 {
		return nil, fmt.Errorf("seq_len %d, batch_size %d: both must be >= 1", config.SeqLen, config.BatchSize)
	}
	usable := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Frames) >= config.SeqLen {
			usable = append(usable, e)
		}
	}
	if len(usable) < config.BatchSize {
		return nil, fmt.Errorf("%d sequences of >= %d frames, batch needs %d: %w",
			len(usable), config.SeqLen, config.BatchSize, ErrTooFewSequences)
	}
	s := &SequenceSource{entries: usable, config: config, rng: rng}
	s.shuffle()
	return s, nil
}

func (s *SequenceSource) shuffle() {
	s.order = s.rng.Perm(len(s.entries))
	s.pos = 0
}

// #endregion constructor

// #region next
// Next returns the next batch. Batch.Offset counts the clips yielded before
// it.
func (s *SequenceSource) Next(ctx context.Context) (tensor.Batch, error) {
	if s.pos+s.config.BatchSize > len(s.order) {
		s.shuffle()
	}

	batch := tensor.Batch{
		Clips:  make([]tensor.Clip, 0, s.config.BatchSize),
		Offset: s.emitted,
	}
	for i := 0; i < s.config.BatchSize; i++ {
		if err := ctx.Err(); err != nil {
			return tensor.Batch{}, err
		}
		entry := s.entries[s.order[s.pos]]
		s.pos++

		clip, err := s.load(entry)
		if err != nil {
			return tensor.Batch{}, err
		}
		batch.Clips = append(batch.Clips, clip)
	}
	s.emitted += s.config.BatchSize
	return batch, nil
}

func (s *SequenceSource) load(e Entry) (tensor.Clip, error) {
	start := s.rng.Intn(len(e.Frames) - s.config.SeqLen + 1)
	clip := make(tensor.Clip, s.config.SeqLen)
	for t := range clip {
		f, err := LoadFrame(e.Path(start+t), s.config.ImageWidth, s.config.Channels)
		if err != nil {
			return nil, fmt.Errorf("load %s frame %d: %w", e.Dir, start+t, err)
		}
		clip[t] = f
	}
	return clip, nil
}

// #endregion next
