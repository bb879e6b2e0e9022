package conversation

import (
	"slices"

	"github.com/BaSui01/agentforum/types"
)

// ModelOption is one model that !add_ai may assign.
type ModelOption struct {
	Ref  string     `json:"ref" yaml:"ref"`
	Tier InviteTier `json:"tier" yaml:"tier"`
}

// Catalog is the ordered list of invitable models.
type Catalog []ModelOption

// Pick returns the first model allowed by tier. Unless allowDuplicates is
// set, models in inUse are skipped.
func (c Catalog) Pick(tier InviteTier, inUse []string, allowDuplicates bool) (string, error) {
	for _, opt := range c {
		if !tierAllows(tier, opt.Tier) {
			continue
		}
		if !allowDuplicates && slices.Contains(inUse, opt.Ref) {
			continue
		}
		return opt.Ref, nil
	}
	return "", types.Errorf(types.ErrNoEligibleModel, "no %s model available for invite", tier)
}

func tierAllows(tier, model InviteTier) bool {
	if tier == TierBoth || tier == "" {
		return true
	}
	return tier == model
}
