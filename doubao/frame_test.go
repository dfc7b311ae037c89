package doubao

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"testing"
)

func evID(v EventID) *EventID { return &v }
func sid(v string) *string    { return &v }

func TestEncodeDecodeRoundTripJSONPayload(t *testing.T) {
	payload := map[string]any{"hello": "world"}
	encoded, err := EncodeFrame(MsgFullClientRequest, FlagHasEvent, evID(EventStartSession), sid("sess-1"), nil, payload, true)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	if frame.MessageType != MsgFullClientRequest {
		t.Errorf("MessageType = %v, want MsgFullClientRequest", frame.MessageType)
	}
	if frame.EventID == nil || *frame.EventID != EventStartSession {
		t.Fatalf("EventID = %v, want %v", frame.EventID, EventStartSession)
	}
	if frame.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", frame.SessionID)
	}
	if frame.Payload.Kind != PayloadJSON {
		t.Fatalf("Payload.Kind = %v, want PayloadJSON", frame.Payload.Kind)
	}
	if frame.Payload.JSON["hello"] != "world" {
		t.Errorf("Payload.JSON[hello] = %v, want world", frame.Payload.JSON["hello"])
	}
}

func TestEncodeDecodeRoundTripEmptyJSON(t *testing.T) {
	encoded, err := EncodeFrame(MsgFullClientRequest, FlagHasEvent, evID(EventStartConnection), nil, nil, map[string]any{}, true)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Payload.Kind != PayloadJSON {
		t.Fatalf("Payload.Kind = %v, want PayloadJSON", frame.Payload.Kind)
	}
	if len(frame.Payload.JSON) != 0 {
		t.Errorf("Payload.JSON = %v, want empty", frame.Payload.JSON)
	}
}

func TestEncodeAudioRequestIsNotJSONWrapped(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x11, 0x22}, 1600)
	encoded, err := EncodeFrame(MsgAudioOnlyRequest, FlagHasEvent, evID(EventTaskRequest), sid("sess-2"), nil, pcm, false)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !bytes.Contains(encoded, pcm) {
		t.Fatal("encoded audio frame should contain the raw PCM bytes verbatim")
	}
	if (encoded[2] >> 4) != SerializationNone {
		t.Errorf("serialization nibble = %d, want SerializationNone", encoded[2]>>4)
	}
}

func TestDecodeServerACKWithGZIPAudio(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 1200) // 4800 bytes
	encoded := buildServerFrame(t, serverFrameSpec{
		msgType:       MsgServerACK,
		flags:         0,
		eventID:       nil,
		sessionID:     sidPtr("sess-3"),
		serialization: SerializationNone,
		compression:   CompressionGZIP,
		body:          pcm,
	})

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Payload.Kind != PayloadBinary {
		t.Fatalf("Payload.Kind = %v, want PayloadBinary", frame.Payload.Kind)
	}
	if !bytes.Equal(frame.Payload.Bytes, pcm) {
		t.Errorf("decoded payload length = %d, want %d", len(frame.Payload.Bytes), len(pcm))
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeFrame([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding a buffer shorter than 8 bytes")
	}
}

func TestDecodeRejectsUnknownMessageType(t *testing.T) {
	header := []byte{ProtocolVersion1<<4 | HeaderSize4, byte(7) << 4, 0, 0, 0, 0, 0, 0}
	if _, err := DecodeFrame(header); err == nil {
		t.Fatal("expected error decoding an unknown message type")
	}
}

func TestDecodePayloadSizeZeroYieldsEmptyNotNil(t *testing.T) {
	encoded := buildServerFrame(t, serverFrameSpec{
		msgType:       MsgServerACK,
		flags:         0,
		sessionID:     sidPtr("sess-4"),
		serialization: SerializationNone,
		body:          []byte{},
	})

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Payload.Bytes == nil {
		t.Error("Payload.Bytes should be an empty slice, not nil")
	}
	if len(frame.Payload.Bytes) != 0 {
		t.Errorf("Payload.Bytes length = %d, want 0", len(frame.Payload.Bytes))
	}
}

func TestDecodeEmptySessionIDIsNotAnError(t *testing.T) {
	encoded := buildServerFrame(t, serverFrameSpec{
		msgType:       MsgFullServerResponse,
		flags:         FlagHasEvent,
		eventID:       evID(EventSessionStarted),
		sessionID:     sidPtr(""),
		serialization: SerializationJSON,
		body:          []byte("{}"),
	})

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.SessionID != "" {
		t.Errorf("SessionID = %q, want empty string", frame.SessionID)
	}
}

func TestDecodeErrorInfoWithoutEventPrefix(t *testing.T) {
	payload := []byte(`{"error":"invalid auth"}`)
	header := []byte{ProtocolVersion1<<4 | HeaderSize4, byte(MsgErrorInfo) << 4, SerializationJSON << 4, 0}

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(beUint32(40001))
	buf.Write(beUint32(uint32(len(payload))))
	buf.Write(payload)

	frame, err := DecodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.ErrorCode != 40001 {
		t.Errorf("ErrorCode = %d, want 40001", frame.ErrorCode)
	}
	if frame.EventID != nil {
		t.Errorf("EventID = %v, want nil for ERROR_INFO", frame.EventID)
	}
	if frame.Payload.Kind != PayloadJSON || frame.Payload.JSON["error"] != "invalid auth" {
		t.Errorf("Payload = %+v, want JSON error field", frame.Payload)
	}
}

func TestDecodeCorruptGZIPKeepsRawBytes(t *testing.T) {
	encoded := buildServerFrame(t, serverFrameSpec{
		msgType:        MsgServerACK,
		flags:          0,
		sessionID:      sidPtr("sess-5"),
		serialization:  SerializationNone,
		compression:    CompressionGZIP,
		body:           []byte("not actually gzip"),
		skipActualGZIP: true,
	})

	frame, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame should not fail on corrupt gzip: %v", err)
	}
	if string(frame.Payload.Bytes) != "not actually gzip" {
		t.Errorf("Payload.Bytes = %q, want raw fallback bytes", frame.Payload.Bytes)
	}
}

// --- test-only frame builders for server-originated wire shapes ---
// EncodeFrame only produces client-bound frames (no errorCode prefix,
// no server ACK framing); these helpers build the server-originated
// shapes DecodeFrame must also understand.

type serverFrameSpec struct {
	msgType        MessageType
	flags          byte
	eventID        *EventID
	sessionID      *string
	serialization  byte
	compression    byte
	body           []byte
	skipActualGZIP bool // build a frame that claims GZIP but isn't, for corrupt-payload tests
}

func buildServerFrame(t *testing.T, spec serverFrameSpec) []byte {
	t.Helper()

	body := spec.body
	if spec.compression == CompressionGZIP && !spec.skipActualGZIP {
		body = gzipBytes(t, body)
	}

	var buf bytes.Buffer
	buf.WriteByte(ProtocolVersion1<<4 | HeaderSize4)
	buf.WriteByte(byte(spec.msgType)<<4 | spec.flags)
	buf.WriteByte(spec.serialization<<4 | spec.compression)
	buf.WriteByte(0)

	if spec.flags&FlagHasEvent != 0 && spec.eventID != nil {
		buf.Write(beUint32(uint32(*spec.eventID)))
	}

	sidBytes := []byte("")
	if spec.sessionID != nil {
		sidBytes = []byte(*spec.sessionID)
	}
	buf.Write(beUint32(uint32(len(sidBytes))))
	buf.Write(sidBytes)

	buf.Write(beUint32(uint32(len(body))))
	buf.Write(body)

	return buf.Bytes()
}

func sidPtr(v string) *string { return &v }

func beUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
