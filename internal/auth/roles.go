package auth

// DefaultRoleID is the lowest-privilege role granted to every new account.
// It matches the seeded roles table and can be overridden through configuration.
const DefaultRoleID int64 = 3

// RoleIDs extracts the role ids from links, preserving order.
func RoleIDs(links []RoleLink) []int64 {
	if len(links) == 0 {
		return []int64{}
	}
	out := make([]int64, 0, len(links))
	for _, l := range links {
		out = append(out, l.RoleID)
	}
	return out
}
