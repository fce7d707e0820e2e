package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"smart-garden/internal/models"
)

// Model kinds
const (
	KindClassifier = "classifier"
	KindRegressor  = "regressor"
)

// Link functions applied to the linear score
const (
	LinkIdentity = "identity"
	LinkLogistic = "logistic"
)

// DefaultThreshold is the classifier decision boundary when the artifact sets none.
const DefaultThreshold = 0.5

var (
	// ErrFeatureOrder is returned when an artifact declares columns in a different
	// order than models.FeatureColumns.
	ErrFeatureOrder = errors.New("model feature order does not match feature vector")

	// ErrUnknownFeature is returned when an artifact has a coefficient for a column
	// the feature vector does not carry.
	ErrUnknownFeature = errors.New("model references unknown feature")
)

// Model is a pure prediction function over a feature vector. Classifiers return
// 0 (not needed) or 1 (needed); regressors return seconds.
type Model interface {
	Predict(fv models.FeatureVector) (float64, error)
	Name() string
}

// LinearSpec is the on-disk artifact format, in JSON or YAML
type LinearSpec struct {
	Name         string             `json:"name" yaml:"name"`
	Kind         string             `json:"kind" yaml:"kind"`
	Features     []string           `json:"features,omitempty" yaml:"features,omitempty"`
	Coefficients map[string]float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64            `json:"intercept" yaml:"intercept"`
	Link         string             `json:"link,omitempty" yaml:"link,omitempty"`
	Threshold    float64            `json:"threshold,omitempty" yaml:"threshold,omitempty"` // classifier only
}

// LinearModel evaluates a LinearSpec
type LinearModel struct {
	spec    LinearSpec
	weights models.FeatureVector
}

// NewLinearModel validates the artifact and resolves coefficients to column positions
func NewLinearModel(spec LinearSpec) (*LinearModel, error) {
	switch spec.Kind {
	case KindClassifier, KindRegressor:
	default:
		return nil, fmt.Errorf("unsupported model kind %q", spec.Kind)
	}

	if spec.Link == "" {
		spec.Link = LinkIdentity
	}
	if spec.Link != LinkIdentity && spec.Link != LinkLogistic {
		return nil, fmt.Errorf("unsupported link function %q", spec.Link)
	}
	if spec.Kind == KindClassifier && spec.Threshold == 0 {
		spec.Threshold = DefaultThreshold
	}
	if spec.Name == "" {
		spec.Name = spec.Kind
	}

	if len(spec.Features) > 0 {
		if len(spec.Features) != len(models.FeatureColumns) {
			return nil, fmt.Errorf("%w: got %v, want %v", ErrFeatureOrder, spec.Features, models.FeatureColumns)
		}
		for i, name := range spec.Features {
			if name != models.FeatureColumns[i] {
				return nil, fmt.Errorf("%w: got %v, want %v", ErrFeatureOrder, spec.Features, models.FeatureColumns)
			}
		}
	}

	m := &LinearModel{spec: spec}
	for name, coef := range spec.Coefficients {
		idx := columnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		m.weights[idx] = coef
	}
	return m, nil
}

func columnIndex(name string) int {
	for i, col := range models.FeatureColumns {
		if col == name {
			return i
		}
	}
	return -1
}

// Name returns the artifact name
func (m *LinearModel) Name() string {
	return m.spec.Name
}

// Kind returns classifier or regressor
func (m *LinearModel) Kind() string {
	return m.spec.Kind
}

// Score returns the linear score after the link function
func (m *LinearModel) Score(fv models.FeatureVector) float64 {
	score := m.spec.Intercept
	for i, w := range m.weights {
		score += w * fv[i]
	}
	if m.spec.Link == LinkLogistic {
		score = 1 / (1 + math.Exp(-score))
	}
	return score
}

// Predict implements Model
func (m *LinearModel) Predict(fv models.FeatureVector) (float64, error) {
	score := m.Score(fv)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("model %s produced non-finite score %v", m.spec.Name, score)
	}
	if m.spec.Kind == KindClassifier {
		if score >= m.spec.Threshold {
			return 1, nil
		}
		return 0, nil
	}
	return score, nil
}

// LoadModel reads a linear model artifact from a .json, .yaml or .yml file and
// checks that it has the expected kind.
func LoadModel(path, kind string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var spec LinearSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model: %w", err)
		}
	}

	if spec.Kind != kind {
		return nil, fmt.Errorf("model %s is a %q, expected %q", path, spec.Kind, kind)
	}

	model, err := NewLinearModel(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	log.Printf("Loaded %s %q from %s", spec.Kind, model.Name(), path)
	return model, nil
}

// SampleClassifier waters when soil is dry, warm and bright.
func SampleClassifier() LinearSpec {
	return LinearSpec{
		Name:     "water_need_classifier",
		Kind:     KindClassifier,
		Features: models.FeatureColumns[:],
		Coefficients: map[string]float64{
			"humidity":    -0.15,
			"light":       0.002,
			"temperature": 0.12,
		},
		Intercept: 2.0,
		Link:      LinkLogistic,
		Threshold: DefaultThreshold,
	}
}

// SampleRegressor predicts longer watering for drier, hotter conditions.
func SampleRegressor() LinearSpec {
	return LinearSpec{
		Name:     "water_duration_regressor",
		Kind:     KindRegressor,
		Features: models.FeatureColumns[:],
		Coefficients: map[string]float64{
			"humidity":    -0.08,
			"light":       0.001,
			"temperature": 0.1,
		},
		Intercept: 2.5,
	}
}

// WriteSpec writes an artifact as JSON or YAML depending on the file extension
func WriteSpec(path string, spec LinearSpec) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(spec)
	default:
		data, err = json.MarshalIndent(spec, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	log.Printf("Created sample %s at %s", spec.Kind, path)
	return nil
}
