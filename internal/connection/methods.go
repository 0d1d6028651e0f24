package connection

// Client-to-server hub methods.
const (
	MethodJoinRoom         = "JoinRoom"
	MethodLeaveRoom        = "LeaveRoom"
	MethodSendMessage      = "SendMessage"
	MethodSendIceCandidate = "SendIceCandidate"
	MethodPing             = "Ping"
	MethodAddToGroup       = "AddToGroup"
	MethodRemoveFromGroup  = "RemoveFromGroup"
)

// Server-to-client hub methods.
const (
	ClientRoomDoesNotExist    = "RoomDoesNotExist"
	ClientNotAuthorizedToJoin = "NotAuthorizedToJoin"
	ClientUserJoined          = "UserJoined"
	ClientUserLeft            = "UserLeft"
	ClientReceiveMessage      = "ReceiveMessage"
	ClientReceiveICECandidate = "ReceiveICECandidate"
)

// ClientMethods lists the server-to-client vocabulary.
func ClientMethods() []string {
	return []string{
		ClientRoomDoesNotExist,
		ClientNotAuthorizedToJoin,
		ClientUserJoined,
		ClientUserLeft,
		ClientReceiveMessage,
		ClientReceiveICECandidate,
	}
}
