// Package visibility implements the access rule engine governing who may view
// a recipe or an uploaded object. The same policy exists in two forms: a pure
// per-item decision (Evaluate) and a parameterized SQL predicate for bulk feed
// queries (Predicate). The two are equivalent by construction and verified
// against each other in the repository integration tests.
package visibility

// Tier classifies who may view a recipe.
type Tier string

const (
	// TierPrivate is visible to the author and explicitly shared users only.
	TierPrivate Tier = "private"
	// TierRestricted is visible to the author's friends.
	TierRestricted Tier = "restricted"
	// TierPublic is visible to everyone, including anonymous viewers.
	TierPublic Tier = "public"
)

// Valid reports whether t is one of the three wire-level tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierPrivate, TierRestricted, TierPublic:
		return true
	}
	return false
}

func (t Tier) String() string { return string(t) }
