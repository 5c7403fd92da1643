package sampler

import "fmt"

// #region phase
// Phase is the rollout regime at a timestep.
type Phase int

const (
	// Conditioning steps copy the true frame into the trajectory.
	Conditioning Phase = iota
	// Predicting steps decode model output into the trajectory.
	Predicting
)

func (p Phase) String() string {
	if p == Conditioning {
		return "conditioning"
	}
	return "predicting"
}

// #endregion phase

// #region window
// Window splits a clip into NPast conditioning frames and NFuture targets.
type Window struct {
	NPast   int `yaml:"n_past"`
	NFuture int `yaml:"n_future"`
}

// NEval is the total trajectory length.
func (w Window) NEval() int {
	return w.NPast + w.NFuture
}

// PhaseAt classifies timestep t.
func (w Window) PhaseAt(t int) Phase {
	if t < w.NPast {
		return Conditioning
	}
	return Predicting
}

// Validate checks both halves of the window are non-empty.
func (w Window) Validate() error {
	if w.NPast < 1 || w.NFuture < 1 {
		return fmt.Errorf("window n_past=%d n_future=%d: both must be >= 1", w.NPast, w.NFuture)
	}
	return nil
}

// #endregion window
