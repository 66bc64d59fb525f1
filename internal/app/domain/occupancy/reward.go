package occupancy

import (
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

// RewardCalculator maps how much occupancy history a floor already has to a
// point award tier. Floors with little data pay the most so early readings
// get seeded; well-covered floors pay the least.
type RewardCalculator struct {
	cfg config.OccupancyConfig
}

func NewRewardCalculator(cfg config.OccupancyConfig) *RewardCalculator {
	return &RewardCalculator{cfg: cfg}
}

// Points returns the award for the next authored reading on a floor that
// currently holds authoredCount readings.
func (c *RewardCalculator) Points(authoredCount int) int {
	switch {
	case authoredCount < c.cfg.InsufficientThreshold:
		return c.cfg.NoDataPoint
	case authoredCount < c.cfg.EnoughThreshold:
		return c.cfg.InsufficientDataPoint
	default:
		return c.cfg.EnoughDataPoint
	}
}
