// Package authz decides whether a principal may mutate a record.
//
// The check here gates the UI affordance and the service call, but it is a
// usability guard, not the security boundary: the store re-enforces ownership
// in every UPDATE/DELETE predicate.
package authz

// CanMutate reports whether principalID may update or delete a record owned
// by ownerID. Elevated principals may mutate any record.
func CanMutate(principalID, ownerID string, elevated bool) bool {
	if elevated {
		return true
	}
	return principalID != "" && principalID == ownerID
}

// CanMutateAll reports whether principalID may mutate every record in a
// bulk selection.
func CanMutateAll(principalID string, ownerIDs []string, elevated bool) bool {
	for _, owner := range ownerIDs {
		if !CanMutate(principalID, owner, elevated) {
			return false
		}
	}
	return true
}
