package domain

// UsageKind names a counted lifecycle event.
type UsageKind string

const (
	UsageRoomCreated      UsageKind = "ROOM_CREATED"
	UsageConnectionOpened UsageKind = "CONNECTION_OPENED"
	UsageVotesPlaced      UsageKind = "VOTES_PLACED"
	UsageRoundCompleted   UsageKind = "ROUND_COMPLETED"
)
