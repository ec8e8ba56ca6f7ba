package models

// Plan catalog. Prices in IDR; plan ids double as membership roles.
var plans = []Plan{
	{ID: RoleBystander, Name: "Bystander", PriceIDR: 0},
	{ID: RoleExecutioner, Name: "The Executioner", PriceIDR: 250000},
	{ID: RoleWarRoom, Name: "War Room", PriceIDR: 1500000},
}

// Plans returns the full plan catalog
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan, returning nil for unknown ids
func PlanByID(id string) *Plan {
	for i := range plans {
		if plans[i].ID == id {
			p := plans[i]
			return &p
		}
	}
	return nil
}

// IsPaidRole reports whether a role corresponds to a paid tier
func IsPaidRole(role string) bool {
	return role == RoleExecutioner || role == RoleWarRoom
}
