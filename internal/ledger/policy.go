package ledger

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"satellite-pos/internal/model"
)

// Policy holds the loyalty business knobs. The sync and merge algorithms
// never read these directly; only the ledger computations do, so the numbers
// can change without touching the protocol.
type Policy struct {
	// flat percentage of an approved order credited to the referrer's wallet
	ReferralRate decimal.Decimal

	// points granted when a customer registers normally
	WelcomeBonusPoints int

	// points granted when a customer record is synthesized from an orphan
	// order during sync recovery; kept low to make recovery re-imports not
	// worth farming
	RecoveredWelcomeBonusPoints int

	// ascending lifetime-spend thresholds
	SilverThresholdUsd  decimal.Decimal
	GoldThresholdUsd    decimal.Decimal
	DiamondThresholdUsd decimal.Decimal
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		ReferralRate:                decimal.NewFromFloat(0.05),
		WelcomeBonusPoints:          20,
		RecoveredWelcomeBonusPoints: 0,
		SilverThresholdUsd:          decimal.NewFromInt(100),
		GoldThresholdUsd:            decimal.NewFromInt(500),
		DiamondThresholdUsd:         decimal.NewFromInt(2000),
	}
}

type policyFile struct {
	ReferralRate                string `yaml:"referral_rate"`
	WelcomeBonusPoints          *int   `yaml:"welcome_bonus_points"`
	RecoveredWelcomeBonusPoints *int   `yaml:"recovered_welcome_bonus_points"`
	TierThresholdsUsd           struct {
		Silver  string `yaml:"silver"`
		Gold    string `yaml:"gold"`
		Diamond string `yaml:"diamond"`
	} `yaml:"tier_thresholds_usd"`
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults.
// Fields absent from the file keep their default values.
func LoadPolicy(path string) (Policy, error) {
	pol := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return pol, fmt.Errorf("read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return pol, fmt.Errorf("parse policy file: %w", err)
	}

	if err := overlayDecimal(&pol.ReferralRate, file.ReferralRate); err != nil {
		return pol, fmt.Errorf("referral_rate: %w", err)
	}
	if file.WelcomeBonusPoints != nil {
		pol.WelcomeBonusPoints = *file.WelcomeBonusPoints
	}
	if file.RecoveredWelcomeBonusPoints != nil {
		pol.RecoveredWelcomeBonusPoints = *file.RecoveredWelcomeBonusPoints
	}
	if err := overlayDecimal(&pol.SilverThresholdUsd, file.TierThresholdsUsd.Silver); err != nil {
		return pol, fmt.Errorf("tier_thresholds_usd.silver: %w", err)
	}
	if err := overlayDecimal(&pol.GoldThresholdUsd, file.TierThresholdsUsd.Gold); err != nil {
		return pol, fmt.Errorf("tier_thresholds_usd.gold: %w", err)
	}
	if err := overlayDecimal(&pol.DiamondThresholdUsd, file.TierThresholdsUsd.Diamond); err != nil {
		return pol, fmt.Errorf("tier_thresholds_usd.diamond: %w", err)
	}

	return pol, nil
}

func overlayDecimal(dst *decimal.Decimal, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// TierFor derives the loyalty tier for a lifetime spend amount.
func (p Policy) TierFor(lifetimeSpendUsd decimal.Decimal) model.Tier {
	switch {
	case lifetimeSpendUsd.GreaterThanOrEqual(p.DiamondThresholdUsd):
		return model.TierDiamond
	case lifetimeSpendUsd.GreaterThanOrEqual(p.GoldThresholdUsd):
		return model.TierGold
	case lifetimeSpendUsd.GreaterThanOrEqual(p.SilverThresholdUsd):
		return model.TierSilver
	default:
		return model.TierBronze
	}
}

var tierRank = map[model.Tier]int{
	model.TierBronze:  0,
	model.TierSilver:  1,
	model.TierGold:    2,
	model.TierDiamond: 3,
}

// MaxTier returns the higher of two tiers. Tiers only ever move forward;
// purges and corrections never demote a customer.
func MaxTier(a, b model.Tier) model.Tier {
	if tierRank[b] > tierRank[a] {
		return b
	}
	return a
}
