package friendships

import "github.com/lifeapp/backend/internal/models"

type removalAction int

const (
	removeDeny removalAction = iota
	removeDelete
)

type removalRule struct {
	name   string
	match  func(f models.Friendship, callerID string) bool
	action removalAction
}

// removalRules are evaluated in order; the first match decides. Anything left
// unmatched is denied.
var removalRules = []removalRule{
	{
		name: "sender withdraws pending request",
		match: func(f models.Friendship, callerID string) bool {
			return f.Status == models.FriendshipPending && f.FromUser == callerID
		},
		action: removeDelete,
	},
	{
		name: "participant ends friendship",
		match: func(f models.Friendship, callerID string) bool {
			return f.Status == models.FriendshipAccepted && f.Involves(callerID)
		},
		action: removeDelete,
	},
}

// evaluateRemoval returns the action and the name of the rule that produced it.
func evaluateRemoval(f models.Friendship, callerID string) (removalAction, string) {
	for _, rule := range removalRules {
		if rule.match(f, callerID) {
			return rule.action, rule.name
		}
	}
	return removeDeny, "default deny"
}
