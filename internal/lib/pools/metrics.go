package pools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promNumPools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakewell",
		Name:      "pool_count",
	})
	promNumStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakewell",
		Name:      "staker_count",
	})
	promTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "stakewell",
		Name:      "staked_total",
	})
)

// UpdateValidatorMetrics publishes a freshly fetched validator's totals.
func UpdateValidatorMetrics(validator *Validator) {
	promNumPools.Set(float64(validator.State.NumPools))
	promNumStakers.Set(float64(validator.State.TotalStakers))
	promTotalStaked.Set(float64(validator.State.TotalAlgoStaked) / 1e6)
}
