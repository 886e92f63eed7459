package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Research Research `yaml:"research"`
	Patents  Patents  `yaml:"patents"`
	Market   Market   `yaml:"market"`
}

type Research struct {
	DelayProb   map[string]float64 `yaml:"delay_prob"`
	OverrunProb map[string]float64 `yaml:"overrun_prob"`

	OverrunMinFrac float64 `yaml:"overrun_min_frac"`
	OverrunMaxFrac float64 `yaml:"overrun_max_frac"`
	SpilloverFrac  float64 `yaml:"spillover_frac"`

	PlatformThreshold     float64 `yaml:"platform_threshold"`
	PlatformCostReduction float64 `yaml:"platform_cost_reduction"`
	PlatformSpeedBonus    int     `yaml:"platform_speed_bonus"`
}

type Patents struct {
	MinTier             int     `yaml:"min_tier"`
	FilingCostPerTier   float64 `yaml:"filing_cost_per_tier"`
	DurationBase        int     `yaml:"duration_base"`
	DurationPerTier     int     `yaml:"duration_per_tier"`
	LicenseFeePerTier   float64 `yaml:"license_fee_per_tier"`
	BlockingPerTier     float64 `yaml:"blocking_per_tier"`
	ExclusiveBonusTier  float64 `yaml:"exclusive_bonus_per_tier"`
	BlockingCap         float64 `yaml:"blocking_cap"`
	ChallengeCost       float64 `yaml:"challenge_cost"`
	ChallengeSuccessPct float64 `yaml:"challenge_success_prob"`
}

type Market struct {
	EMAAlpha            float64 `yaml:"ema_alpha"`
	PriceSensitivity    float64 `yaml:"price_sensitivity"`
	UnderservedBonusMax float64 `yaml:"underserved_bonus_max"`
	UnderservedCapacity int     `yaml:"underserved_capacity"`
}

// Default returns the tuning used when no tuning.yaml override is supplied.
// Values mirror configs/tuning.yaml.
func Default() Tuning {
	return Tuning{
		Research: Research{
			DelayProb:             map[string]float64{"conservative": 0.05, "moderate": 0.15, "aggressive": 0.30},
			OverrunProb:           map[string]float64{"conservative": 0.05, "moderate": 0.20, "aggressive": 0.40},
			OverrunMinFrac:        0.10,
			OverrunMaxFrac:        0.30,
			SpilloverFrac:         0.20,
			PlatformThreshold:     50000,
			PlatformCostReduction: 0.10,
			PlatformSpeedBonus:    1,
		},
		Patents: Patents{
			MinTier:             2,
			FilingCostPerTier:   10000,
			DurationBase:        4,
			DurationPerTier:     2,
			LicenseFeePerTier:   2000,
			BlockingPerTier:     0.05,
			ExclusiveBonusTier:  0.03,
			BlockingCap:         0.30,
			ChallengeCost:       15000,
			ChallengeSuccessPct: 0.35,
		},
		Market: Market{
			EMAAlpha:            0.3,
			PriceSensitivity:    3.0,
			UnderservedBonusMax: 0.25,
			UnderservedCapacity: 3,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	for _, risk := range []string{"conservative", "moderate", "aggressive"} {
		if _, ok := t.Research.DelayProb[risk]; !ok {
			return fmt.Errorf("tuning: research.delay_prob missing %q", risk)
		}
		if _, ok := t.Research.OverrunProb[risk]; !ok {
			return fmt.Errorf("tuning: research.overrun_prob missing %q", risk)
		}
	}
	if t.Research.OverrunMinFrac < 0 || t.Research.OverrunMaxFrac < t.Research.OverrunMinFrac {
		return fmt.Errorf("tuning: bad overrun fraction range [%v, %v]", t.Research.OverrunMinFrac, t.Research.OverrunMaxFrac)
	}
	if t.Market.EMAAlpha <= 0 || t.Market.EMAAlpha > 1 {
		return fmt.Errorf("tuning: market.ema_alpha %v outside (0, 1]", t.Market.EMAAlpha)
	}
	if t.Patents.MinTier < 1 {
		return fmt.Errorf("tuning: patents.min_tier %d below 1", t.Patents.MinTier)
	}
	if t.Patents.BlockingCap <= 0 || t.Patents.BlockingCap > 1 {
		return fmt.Errorf("tuning: patents.blocking_cap %v outside (0, 1]", t.Patents.BlockingCap)
	}
	return nil
}
