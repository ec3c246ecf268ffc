package s5_sequences

import (
	"fmt"
	"math"

	"github.com/wonny/newsquant/internal/contracts"
)

// Default rolling-window split ratios
const (
	DefaultTrainRatio = 0.70
	DefaultValRatio   = 0.15
)

// boundaryEpsilon keeps n*ratio from flooring one below an exact integer
const boundaryEpsilon = 1e-9

// Dataset is one (input tensor, label vector) pair
type Dataset struct {
	X [][][]float64 `json:"x"`
	Y []float64     `json:"y"`
}

// Shape returns (count, window length, features). Empty datasets report zeros.
func (d Dataset) Shape() (int, int, int) {
	if len(d.X) == 0 {
		return 0, 0, 0
	}
	steps := len(d.X[0])
	features := 0
	if steps > 0 {
		features = len(d.X[0][0])
	}
	return len(d.X), steps, features
}

// Len returns the number of windows
func (d Dataset) Len() int {
	return len(d.Y)
}

// Split holds the chronological train/validation/test partitions
type Split struct {
	Train      Dataset `json:"train"`
	Validation Dataset `json:"validation"`
	Test       Dataset `json:"test"`
}

// Boundaries returns the split indexes floor(n*train) and floor(n*(train+val))
func Boundaries(n int, trainRatio, valRatio float64) (int, int, error) {
	if err := validateRatios(trainRatio, valRatio); err != nil {
		return 0, 0, err
	}
	trainEnd := int(math.Floor(float64(n)*trainRatio + boundaryEpsilon))
	valEnd := int(math.Floor(float64(n)*(trainRatio+valRatio) + boundaryEpsilon))
	if trainEnd > n {
		trainEnd = n
	}
	if valEnd > n {
		valEnd = n
	}
	return trainEnd, valEnd, nil
}

func validateRatios(trainRatio, valRatio float64) error {
	if math.IsNaN(trainRatio) || math.IsNaN(valRatio) {
		return fmt.Errorf("split ratios must be numbers")
	}
	if trainRatio <= 0 || valRatio < 0 || trainRatio+valRatio > 1+boundaryEpsilon {
		return fmt.Errorf("invalid split ratios: train=%v val=%v", trainRatio, valRatio)
	}
	return nil
}

// SplitSequences partitions windows by position with no shuffling.
// Any partition may be empty when there are few windows.
func SplitSequences(seqs []contracts.Sequence, trainRatio, valRatio float64) (Split, error) {
	trainEnd, valEnd, err := Boundaries(len(seqs), trainRatio, valRatio)
	if err != nil {
		return Split{}, err
	}
	return Split{
		Train:      toDataset(seqs[:trainEnd]),
		Validation: toDataset(seqs[trainEnd:valEnd]),
		Test:       toDataset(seqs[valEnd:]),
	}, nil
}

func toDataset(seqs []contracts.Sequence) Dataset {
	d := Dataset{
		X: make([][][]float64, len(seqs)),
		Y: make([]float64, len(seqs)),
	}
	for i, s := range seqs {
		d.X[i] = s.Inputs
		d.Y[i] = s.Label
	}
	return d
}
