package importsController

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		total     int
		want      int
	}{
		{"nothing processed", 0, 10, 0},
		{"empty feed", 0, 0, 0},
		{"half way", 5, 10, 50},
		{"rounds down", 1, 3, 33},
		{"last item stays below 100", 10, 10, 99},
		{"more than counted", 12, 10, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeProgress(tt.processed, tt.total))
		})
	}
}

func TestComputeProgress_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("progress never decreases as items are processed", prop.ForAll(
		func(total, a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return computeProgress(a, total) <= computeProgress(b, total)
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.Property("progress stays within 0..99 while processing", prop.ForAll(
		func(total, processed int) bool {
			progress := computeProgress(processed, total)
			return progress >= 0 && progress <= 99
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 200000),
	))

	properties.TestingRun(t)
}
