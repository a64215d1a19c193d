package quota

import (
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
)

// Plan holds the per-plan quota limits and enhancement entitlements.
// A MonthlyLimit <= 0 disables the monthly check.
type Plan struct {
	Name         string `json:"name"`
	DailyLimit   int    `json:"daily_limit"`
	MonthlyLimit int    `json:"monthly_limit"`
	MaxUpscale   int    `json:"max_upscale"`
	FaceEnhance  bool   `json:"face_enhance"`
}

var plans = map[string]Plan{
	"guest":   {Name: "guest", DailyLimit: 3, MonthlyLimit: 30, MaxUpscale: 2, FaceEnhance: false},
	"free":    {Name: "free", DailyLimit: 10, MonthlyLimit: 100, MaxUpscale: 2, FaceEnhance: false},
	"pro":     {Name: "pro", DailyLimit: 40, MonthlyLimit: 600, MaxUpscale: 4, FaceEnhance: true},
	"premium": {Name: "premium", DailyLimit: 100, MonthlyLimit: 0, MaxUpscale: 4, FaceEnhance: true},
}

// PlanFor returns the plan for an owner, falling back to the guest plan for
// unknown plan names.
func PlanFor(o owner.Owner) Plan {
	if p, ok := plans[o.Plan]; ok {
		return p
	}
	return plans["guest"]
}
