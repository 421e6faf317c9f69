package config

import (
	"fmt"
	"os"

	yamlv2 "gopkg.in/yaml.v2"
)

// ScoreWeights lets an operator override the relative weight each of the
// five impulse-scoring criteria contributes to a discretionary confidence
// readout; the pass/fail scoring itself (impulse.Builder.Score) is
// unaffected and always used for completion/invalidation decisions.
type ScoreWeights struct {
	BrokeSwing      float64 `yaml:"broke_swing"`
	Fast            float64 `yaml:"fast"`
	Uniform         float64 `yaml:"uniform"`
	VolumeIncreased float64 `yaml:"volume_increased"`
	SufficientSize  float64 `yaml:"sufficient_size"`
}

// WeightsDocument is a standalone YAML document (parsed with yaml.v2, kept
// separate from the primary yaml.v3 config document so weight tuning can be
// redeployed without touching connection or risk settings).
type WeightsDocument struct {
	Weights           ScoreWeights `yaml:"weights"`
	SumTolerance      float64      `yaml:"sum_tolerance"`
}

// LoadWeights reads and validates a weights document from path. An empty
// path returns the default, evenly-weighted document.
func LoadWeights(path string) (*WeightsDocument, error) {
	if path == "" {
		return defaultWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file %s: %w", path, err)
	}

	doc := defaultWeights()
	if err := yamlv2.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse weights file %s: %w", path, err)
	}

	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("invalid weights file %s: %w", path, err)
	}
	return doc, nil
}

func defaultWeights() *WeightsDocument {
	return &WeightsDocument{
		Weights: ScoreWeights{
			BrokeSwing:      0.20,
			Fast:            0.20,
			Uniform:         0.20,
			VolumeIncreased: 0.20,
			SufficientSize:  0.20,
		},
		SumTolerance: 0.01,
	}
}

func (d *WeightsDocument) validate() error {
	w := d.Weights
	for name, v := range map[string]float64{
		"broke_swing": w.BrokeSwing, "fast": w.Fast, "uniform": w.Uniform,
		"volume_increased": w.VolumeIncreased, "sufficient_size": w.SufficientSize,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s=%.3f out of bounds [0,1]", name, v)
		}
	}
	sum := w.BrokeSwing + w.Fast + w.Uniform + w.VolumeIncreased + w.SufficientSize
	if absF(sum-1.0) > d.SumTolerance {
		return fmt.Errorf("weights sum to %.4f, expected 1.0 +/- %.3f", sum, d.SumTolerance)
	}
	return nil
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
