package knapsack

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Item is one object that may be packed.
type Item struct {
	Value  float64 `yaml:"value" json:"value" validate:"gte=0"`
	Weight float64 `yaml:"weight" json:"weight" validate:"gt=0"`
}

// Instance is a 0/1 knapsack problem: maximize the packed value subject to the capacity.
type Instance struct {
	Name     string  `yaml:"name" json:"name"`
	Capacity float64 `yaml:"capacity" json:"capacity" validate:"gte=0"`
	Items    []Item  `yaml:"items" json:"items" validate:"dive"`
}

// Validate checks field constraints.
func (in *Instance) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid knapsack instance: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (in *Instance) Clone() *Instance {
	out := *in
	out.Items = append([]Item(nil), in.Items...)
	return &out
}

// LoadInstance reads a YAML instance file.
func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance: %w", err)
	}
	var in Instance
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse instance %s: %w", path, err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Generate builds a random instance with n items whose capacity is half the total weight.
// The same seed always yields the same instance.
func Generate(seed uint64, n int) *Instance {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	in := &Instance{
		Name:  fmt.Sprintf("generated-%d-%d", seed, n),
		Items: make([]Item, n),
	}
	total := 0.0
	for i := range in.Items {
		in.Items[i] = Item{
			Value:  float64(1 + rng.IntN(100)),
			Weight: float64(1 + rng.IntN(100)),
		}
		total += in.Items[i].Weight
	}
	in.Capacity = float64(int(total / 2))
	return in
}
