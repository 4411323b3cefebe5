package authz

import "github.com/platinummonkey/chefhub/pkg/identity"

// Capability is a permission granted to a role
type Capability string

const (
	CapOwnContentMutation Capability = "own_content_mutation"
	CapFreeRead           Capability = "free_read"
	CapGatedRead          Capability = "gated_read"
	CapPurchase           Capability = "purchase"
)

// Capabilities is the set granted to one actor
type Capabilities map[Capability]struct{}

// Has reports whether c is in the set
func (cs Capabilities) Has(c Capability) bool {
	_, ok := cs[c]
	return ok
}

var roleCapabilities = map[identity.Role][]Capability{
	identity.RoleChef:    {CapOwnContentMutation, CapFreeRead, CapGatedRead},
	identity.RoleStudent: {CapFreeRead, CapGatedRead, CapPurchase},
}

// CapabilitiesFor returns the capabilities of an actor. Anonymous actors
// only get free reads.
func CapabilitiesFor(actor identity.Actor) Capabilities {
	caps := Capabilities{CapFreeRead: {}}
	if actor.IsAnonymous() {
		return caps
	}
	for _, c := range roleCapabilities[actor.Role] {
		caps[c] = struct{}{}
	}
	return caps
}
