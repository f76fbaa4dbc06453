package visibility

import (
	sq "github.com/Masterminds/squirrel"
)

// Predicate returns the bulk form of the view policy as a parameterized SQL
// expression, for use in set-oriented feed queries. It assumes the query
// aliases recipes as r, friendships as f and recipe_shares as rs, and is the
// disjunction of the same conditions Evaluate checks one by one.
//
// The viewer id is always bound as a parameter. Splicing it into the query
// text, however well escaped, is a defect, not a shortcut.
func Predicate(viewerID string) sq.Sqlizer {
	if viewerID == Anonymous {
		return sq.Eq{"r.visibility": string(TierPublic)}
	}

	return sq.Or{
		sq.Expr("r.author_id = ?", viewerID),
		sq.Eq{"r.visibility": string(TierPublic)},
		sq.Expr(
			`(r.visibility = ? AND EXISTS (
				SELECT 1 FROM friendships f
				WHERE f.user_id = ? AND f.friend_id = r.author_id
			))`,
			string(TierRestricted), viewerID,
		),
		sq.Expr(
			`(r.visibility = ? AND EXISTS (
				SELECT 1 FROM recipe_shares rs
				WHERE rs.recipe_id = r.id AND rs.shared_with_user_id = ?
			))`,
			string(TierPrivate), viewerID,
		),
	}
}
