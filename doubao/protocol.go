package doubao

// Wire-level constants for the upstream dialogue protocol. Field widths
// are nibbles packed into a 4-byte header unless noted otherwise; see
// frame.go for the layout.
const (
	ProtocolVersion1 byte = 1
	HeaderSize4      byte = 1 // header length in units of 4 bytes

	SerializationNone byte = 0 // binary payload
	SerializationJSON byte = 1

	CompressionNone byte = 0
	CompressionGZIP byte = 1
)

// MessageType identifies the kind of frame on the wire.
type MessageType byte

const (
	MsgFullClientRequest MessageType = 1
	MsgAudioOnlyRequest   MessageType = 2
	MsgFullServerResponse MessageType = 9
	MsgAudioOnlyResponse  MessageType = 11 // also used as the server ACK type
	MsgServerACK          MessageType = 11
	MsgErrorInfo          MessageType = 15
)

// Flag bits packed into the frame header's flags nibble.
const (
	FlagHasSequence byte = 0b0010
	FlagHasEvent    byte = 0b0100
)

// EventID identifies the logical event a frame carries.
type EventID uint32

const (
	EventStartConnection  EventID = 1
	EventFinishConnection EventID = 2
	EventStartSession     EventID = 100
	EventFinishSession    EventID = 102
	EventTaskRequest      EventID = 200

	EventConnectionStarted  EventID = 50
	EventConnectionFailed   EventID = 51
	EventConnectionFinished EventID = 52
	EventSessionStarted     EventID = 150
	EventSessionFinished    EventID = 152
	EventSessionFailed      EventID = 153
	EventTTSResponse        EventID = 352
	EventASRInfo            EventID = 450
	EventASRResponse        EventID = 451
	EventASREnded           EventID = 459
	EventChatResponse       EventID = 550
	EventChatEnded          EventID = 559
)
