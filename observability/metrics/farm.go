package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmMetrics exposes staking and reward pool gauges per farm.
type FarmMetrics struct {
	stakedFarmers *prometheus.GaugeVec
	gemsStaked    *prometheus.GaugeVec
	rarityStaked  *prometheus.GaugeVec
	poolFunded    *prometheus.GaugeVec
	poolAccrued   *prometheus.GaugeVec
	poolRefunded  *prometheus.GaugeVec
	poolReserved  *prometheus.GaugeVec
	claims        *prometheus.CounterVec
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			stakedFarmers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_farm_staked_farmers",
				Help: "Farmers currently staked per farm.",
			}, []string{"farm"}),
			gemsStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_farm_gems_staked",
				Help: "Gems currently staked per farm.",
			}, []string{"farm"}),
			rarityStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_farm_rarity_points_staked",
				Help: "Rarity points currently staked per farm.",
			}, []string{"farm"}),
			poolFunded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_pool_funded",
				Help: "Total amount ever funded into a reward pool.",
			}, []string{"farm", "mint"}),
			poolAccrued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_pool_accrued",
				Help: "Total amount accrued to stakers from a reward pool.",
			}, []string{"farm", "mint"}),
			poolRefunded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_pool_refunded",
				Help: "Total amount refunded to funders from a reward pool.",
			}, []string{"farm", "mint"}),
			poolReserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gemfarm_pool_reserved",
				Help: "Amount promised to fixed-rate farmers and not yet accrued.",
			}, []string{"farm", "mint"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gemfarm_reward_claims_total",
				Help: "Number of claims that paid out a positive amount.",
			}, []string{"farm", "mint"}),
		}
		prometheus.MustRegister(
			farmRegistry.stakedFarmers,
			farmRegistry.gemsStaked,
			farmRegistry.rarityStaked,
			farmRegistry.poolFunded,
			farmRegistry.poolAccrued,
			farmRegistry.poolRefunded,
			farmRegistry.poolReserved,
			farmRegistry.claims,
		)
	})
	return farmRegistry
}

// ObserveStaking sets the staking gauges of a farm.
func (m *FarmMetrics) ObserveStaking(farm string, farmers, gems, rarity uint64) {
	if m == nil || farm == "" {
		return
	}
	m.stakedFarmers.WithLabelValues(farm).Set(float64(farmers))
	m.gemsStaked.WithLabelValues(farm).Set(float64(gems))
	m.rarityStaked.WithLabelValues(farm).Set(float64(rarity))
}

// ObservePool sets the funding gauges of one reward pool.
func (m *FarmMetrics) ObservePool(farm, mint string, funded, accrued, refunded, reserved float64) {
	if m == nil || farm == "" {
		return
	}
	m.poolFunded.WithLabelValues(farm, mint).Set(funded)
	m.poolAccrued.WithLabelValues(farm, mint).Set(accrued)
	m.poolRefunded.WithLabelValues(farm, mint).Set(refunded)
	m.poolReserved.WithLabelValues(farm, mint).Set(reserved)
}

func (m *FarmMetrics) RecordClaim(farm, mint string) {
	if m == nil || farm == "" {
		return
	}
	m.claims.WithLabelValues(farm, mint).Inc()
}
