// Package budget computes right-sized output-token budgets for paid model
// calls. Requesting the endpoint's maximum on every call pays for headroom
// that short inputs never use; the allocator ramps the budget with input
// length instead, bounding cost per call.
package budget

import (
	"fmt"
	"math"
)

// Class describes the budget envelope for one endpoint class.
type Class struct {
	// MinTokens is the floor of the budget ramp.
	MinTokens int `json:"min_tokens" yaml:"min_tokens"`
	// MaxTokens is the ceiling of the budget ramp.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// ScalingMidpoint is the content length (in characters) at which the
	// budget reaches the midpoint between MinTokens and MaxTokens.
	ScalingMidpoint int `json:"scaling_midpoint" yaml:"scaling_midpoint"`
	// ScalingMax is the content length at or beyond which the budget is
	// MaxTokens.
	ScalingMax int `json:"scaling_max" yaml:"scaling_max"`
}

// Validate reports whether the class describes a usable ramp.
func (c Class) Validate() error {
	if c.MinTokens <= 0 {
		return fmt.Errorf("budget: min_tokens must be > 0, got %d", c.MinTokens)
	}
	if c.MaxTokens < c.MinTokens {
		return fmt.Errorf("budget: max_tokens %d below min_tokens %d", c.MaxTokens, c.MinTokens)
	}
	if c.ScalingMidpoint <= 0 {
		return fmt.Errorf("budget: scaling_midpoint must be > 0, got %d", c.ScalingMidpoint)
	}
	if c.ScalingMax <= c.ScalingMidpoint {
		return fmt.Errorf("budget: scaling_max %d must exceed scaling_midpoint %d", c.ScalingMax, c.ScalingMidpoint)
	}
	return nil
}

// Allocate returns the output-token budget for an input of the given length
// under class c: a piecewise-linear ramp from MinTokens to the midpoint over
// [0, ScalingMidpoint), then to MaxTokens over [ScalingMidpoint, ScalingMax),
// flat at MaxTokens beyond. The result is rounded to the nearest integer and
// always lies in [MinTokens, MaxTokens]; it is non-decreasing in length.
func Allocate(length int, c Class) int {
	if length < 0 {
		length = 0
	}
	span := float64(c.MaxTokens - c.MinTokens)
	var b float64
	switch {
	case length < c.ScalingMidpoint:
		b = float64(c.MinTokens) + span*0.5*(float64(length)/float64(c.ScalingMidpoint))
	case length < c.ScalingMax:
		frac := float64(length-c.ScalingMidpoint) / float64(c.ScalingMax-c.ScalingMidpoint)
		b = float64(c.MinTokens) + span*0.5 + span*0.5*frac
	default:
		b = float64(c.MaxTokens)
	}
	return clamp(int(math.Round(b)), c.MinTokens, c.MaxTokens)
}

// Fallback bounds for inputs whose endpoint class is unknown.
const (
	FallbackFloor   = 256
	FallbackCeiling = 2048
)

// AllocateDefault is the bounded heuristic for unknown endpoint classes:
// half a token per input character, clamped to [floor, ceiling]. Pass zero
// for floor/ceiling to use the package defaults.
func AllocateDefault(length, floor, ceiling int) int {
	if floor <= 0 {
		floor = FallbackFloor
	}
	if ceiling <= 0 {
		ceiling = FallbackCeiling
	}
	if length < 0 {
		length = 0
	}
	return clamp(int(math.Round(float64(length)*0.5)), floor, ceiling)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Registry maps endpoint names to their budget classes.
type Registry struct {
	classes map[string]Class
}

// Default endpoint classes for the suggestion endpoints. Hashtag and
// image-prompt outputs are short regardless of input size; SEO analysis
// grows with the article.
var defaultClasses = map[string]Class{
	"titles":   {MinTokens: 200, MaxTokens: 800, ScalingMidpoint: 2000, ScalingMax: 10000},
	"hashtags": {MinTokens: 100, MaxTokens: 400, ScalingMidpoint: 1500, ScalingMax: 8000},
	"seo":      {MinTokens: 400, MaxTokens: 1600, ScalingMidpoint: 3000, ScalingMax: 15000},
	"eyecatch": {MinTokens: 150, MaxTokens: 600, ScalingMidpoint: 2000, ScalingMax: 10000},
}

// NewRegistry creates a registry seeded with the default endpoint classes,
// then overlaid with overrides. Each override is validated.
func NewRegistry(overrides map[string]Class) (*Registry, error) {
	classes := make(map[string]Class, len(defaultClasses)+len(overrides))
	for name, c := range defaultClasses {
		classes[name] = c
	}
	for name, c := range overrides {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint class %q: %w", name, err)
		}
		classes[name] = c
	}
	return &Registry{classes: classes}, nil
}

// Lookup returns the class registered for endpoint.
func (r *Registry) Lookup(endpoint string) (Class, bool) {
	c, ok := r.classes[endpoint]
	return c, ok
}

// AllocateFor computes the budget for endpoint at the given input length,
// falling back to the bounded default heuristic when the endpoint has no
// registered class.
func (r *Registry) AllocateFor(endpoint string, length int) int {
	if c, ok := r.classes[endpoint]; ok {
		return Allocate(length, c)
	}
	return AllocateDefault(length, 0, 0)
}
