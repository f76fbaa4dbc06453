package visibility

import "context"

// Anonymous is the viewer id of an unauthenticated request.
const Anonymous = ""

// Facts carries the relationship state a decision depends on. Callers supply
// only the facts that can matter; both default to false.
type Facts struct {
	// ViewerIsFriendOfOwner is the directional friendship edge
	// viewer -> owner. Edges are created mutually, so one direction is
	// sufficient.
	ViewerIsFriendOfOwner bool
	// ViewerHasShare is an explicit per-viewer grant on this item.
	ViewerHasShare bool
}

// Evaluate decides view access for a single item. The checks run in a fixed
// order and the first match wins; each later check assumes the earlier ones
// failed.
//
//  1. owner always sees own content, regardless of tier
//  2. public content is visible to any viewer
//  3. anonymous viewers see nothing beyond public
//  4. restricted requires the viewer -> owner friendship edge
//  5. private requires an explicit share for this viewer and item
//  6. everything else is denied
func Evaluate(viewerID, ownerID string, tier Tier, facts Facts) bool {
	if viewerID != Anonymous && viewerID == ownerID {
		return true
	}
	if tier == TierPublic {
		return true
	}
	if viewerID == Anonymous {
		return false
	}
	if tier == TierRestricted {
		return facts.ViewerIsFriendOfOwner
	}
	if tier == TierPrivate {
		return facts.ViewerHasShare
	}
	return false
}

// EvaluateAvatar decides access to a user's avatar: the reduced policy where
// the implicit tier is restricted-to-friends-or-self.
func EvaluateAvatar(viewerID, ownerID string, viewerIsFriendOfOwner bool) bool {
	if viewerID != Anonymous && viewerID == ownerID {
		return true
	}
	if viewerID == Anonymous {
		return false
	}
	return viewerIsFriendOfOwner
}

// FactSource answers relationship questions from the source of truth. There
// is deliberately no caching layer: every request re-reads the current
// friendship and share state, so a revoked relationship takes effect on the
// next request.
type FactSource interface {
	FriendshipExists(ctx context.Context, userID, friendID string) (bool, error)
	ShareExists(ctx context.Context, recipeID, userID string) (bool, error)
}

// CanView applies Evaluate against facts loaded lazily from src, so the
// friendship and share lookups only run when the tier makes them relevant.
func CanView(ctx context.Context, src FactSource, viewerID, ownerID string, tier Tier, itemID string) (bool, error) {
	if viewerID != Anonymous && viewerID == ownerID {
		return true, nil
	}
	if tier == TierPublic {
		return true, nil
	}
	if viewerID == Anonymous {
		return false, nil
	}

	switch tier {
	case TierRestricted:
		return src.FriendshipExists(ctx, viewerID, ownerID)
	case TierPrivate:
		return src.ShareExists(ctx, itemID, viewerID)
	}
	return false, nil
}

// CanViewAvatar is CanView for the reduced avatar policy.
func CanViewAvatar(ctx context.Context, src FactSource, viewerID, ownerID string) (bool, error) {
	if viewerID != Anonymous && viewerID == ownerID {
		return true, nil
	}
	if viewerID == Anonymous {
		return false, nil
	}
	return src.FriendshipExists(ctx, viewerID, ownerID)
}
