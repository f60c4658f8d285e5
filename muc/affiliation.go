// Package muc resolves XMPP multi-user-chat affiliations from the
// permissions engine. The MUC protocol module asks "what is this
// occupant's affiliation in this room" and "may this occupant do X";
// both reduce to permission checks on the room's channel object.
package muc

import (
	"context"

	"github.com/waddlechat/permafrost/permissions"
)

// Affiliation is a long-lived association between a user and a room,
// as defined by XEP-0045.
type Affiliation string

const (
	AffiliationOwner   Affiliation = "owner"
	AffiliationAdmin   Affiliation = "admin"
	AffiliationMember  Affiliation = "member"
	AffiliationOutcast Affiliation = "outcast"
	AffiliationNone    Affiliation = "none"
)

// Room permissions consulted during resolution, in precedence order.
const (
	permConfigure = "configure"
	permModerate  = "moderate"
	permView      = "view"
)

// Resolver maps engine verdicts onto MUC affiliations for a room.
type Resolver struct {
	service *permissions.Service
}

// NewResolver creates an affiliation resolver over the permissions
// service.
func NewResolver(service *permissions.Service) *Resolver {
	return &Resolver{service: service}
}

// Affiliation resolves the occupant's affiliation in the room. An
// outcast (banned relation on the channel) outranks everything; then
// configure implies owner, moderate implies admin, view implies member.
func (r *Resolver) Affiliation(ctx context.Context, roomID, userID string) (Affiliation, error) {
	room := "channel:" + roomID
	user := "user:" + userID

	banned, err := r.service.CheckPermission(ctx, room, permissions.RelationBanned, user)
	if err != nil {
		return AffiliationNone, err
	}
	if banned {
		return AffiliationOutcast, nil
	}

	for _, step := range []struct {
		permission  string
		affiliation Affiliation
	}{
		{permConfigure, AffiliationOwner},
		{permModerate, AffiliationAdmin},
		{permView, AffiliationMember},
	} {
		ok, err := r.service.CheckPermission(ctx, room, step.permission, user)
		if err != nil {
			return AffiliationNone, err
		}
		if ok {
			return step.affiliation, nil
		}
	}

	return AffiliationNone, nil
}

// CanEnter reports whether the occupant may join the room. Outcasts
// are refused even when a view grant would otherwise admit them.
func (r *Resolver) CanEnter(ctx context.Context, roomID, userID string) (bool, error) {
	aff, err := r.Affiliation(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	return aff == AffiliationOwner || aff == AffiliationAdmin || aff == AffiliationMember, nil
}

// CanKick reports whether the occupant may remove another occupant.
func (r *Resolver) CanKick(ctx context.Context, roomID, userID string) (bool, error) {
	return r.service.CheckPermission(ctx, "channel:"+roomID, permModerate, "user:"+userID)
}

// CanConfigure reports whether the occupant may change the room
// configuration.
func (r *Resolver) CanConfigure(ctx context.Context, roomID, userID string) (bool, error) {
	return r.service.CheckPermission(ctx, "channel:"+roomID, permConfigure, "user:"+userID)
}

// Ban records the outcast affiliation as a banned relation on the room.
func (r *Resolver) Ban(ctx context.Context, roomID, userID string) error {
	return r.service.Grant(ctx, permissions.TypeUser, userID, permissions.RelationBanned, permissions.TypeChannel, roomID)
}

// Unban lifts the outcast affiliation.
func (r *Resolver) Unban(ctx context.Context, roomID, userID string) error {
	return r.service.Revoke(ctx, permissions.TypeUser, userID, permissions.RelationBanned, permissions.TypeChannel, roomID)
}
