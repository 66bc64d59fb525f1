package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

func TestRewardCalculatorPoints(t *testing.T) {
	calc := NewRewardCalculator(config.OccupancyConfig{
		InsufficientThreshold: 6,
		EnoughThreshold:       16,
		NoDataPoint:           50,
		InsufficientDataPoint: 20,
		EnoughDataPoint:       10,
	})

	tests := []struct {
		name     string
		count    int
		expected int
	}{
		{"no data", 0, 50},
		{"just below insufficient threshold", 5, 50},
		{"at insufficient threshold", 6, 20},
		{"between thresholds", 15, 20},
		{"at enough threshold", 16, 10},
		{"well past enough threshold", 200, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, calc.Points(tc.count))
		})
	}
}
