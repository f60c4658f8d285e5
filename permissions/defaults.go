package permissions

// Stock relations used across the platform schemas.
const (
	RelationOwner       = "owner"
	RelationAdmin       = "admin"
	RelationMember      = "member"
	RelationModerator   = "moderator"
	RelationManager     = "manager"
	RelationViewer      = "viewer"
	RelationPoster      = "poster"
	RelationParent      = "parent"
	RelationParticipant = "participant"
	RelationAuthor      = "author"
	RelationBanned      = "banned"
	RelationAssignee    = "assignee"
)

// DefaultSchemas returns the stock permission schemas for the Waddle
// platform object types. Applications with different policies supply
// their own schemas; the engine does not require these.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Type: TypeWaddle,
			Permissions: map[string]Computed{
				// Settings can be managed by owners and admins.
				"manage_settings": AnyOf(
					Direct(RelationOwner),
					Direct(RelationAdmin),
				),
				"invite": AnyOf(
					Direct(RelationOwner),
					Direct(RelationAdmin),
					Direct(RelationMember),
				),
				"view": AnyOf(
					Direct(RelationOwner),
					Direct(RelationAdmin),
					Direct(RelationMember),
				),
				"delete": Direct(RelationOwner),
				// Only an owner who is still enrolled as a member may
				// hand the community over.
				"transfer_ownership": AllOf(
					Direct(RelationOwner),
					Direct(RelationMember),
				),
			},
		},
		{
			Type: TypeChannel,
			Permissions: map[string]Computed{
				"view": AnyOf(
					Direct(RelationViewer),
					Inherit(RelationParent, "view"),
				),
				"post": AnyOf(
					Direct(RelationPoster),
					Inherit(RelationParent, "view"),
				),
				"moderate": AnyOf(
					Direct(RelationModerator),
					Inherit(RelationParent, RelationAdmin),
				),
				// Channel managers must still belong to the parent
				// community; owners and parent admins always qualify.
				"configure": AnyOf(
					Direct(RelationOwner),
					Inherit(RelationParent, RelationAdmin),
					AllOf(
						Direct(RelationManager),
						Inherit(RelationParent, RelationMember),
					),
				),
			},
		},
		{
			Type: TypeDirectMessage,
			Permissions: map[string]Computed{
				"view": Direct(RelationParticipant),
				"post": Direct(RelationParticipant),
			},
		},
		{
			Type: TypeMessage,
			Permissions: map[string]Computed{
				"delete": AnyOf(
					Direct(RelationAuthor),
					Inherit(RelationChannel, "moderate"),
				),
				"edit": Direct(RelationAuthor),
			},
		},
	}
}

// RelationChannel links a message to its containing channel.
const RelationChannel = "channel"
