package doubao

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/bytedance/sonic"
)

// PayloadKind tags what Frame.Payload holds, so dispatch code never has
// to type-switch on a bare any.
type PayloadKind int

const (
	PayloadEmpty  PayloadKind = iota
	PayloadBinary             // Payload.Bytes is opaque data (PCM audio)
	PayloadJSON               // Payload.JSON decoded successfully
	PayloadText               // JSON parse failed; Payload.Text has the raw string
)

// Payload is a tagged variant: decoded frame bodies are either binary,
// a parsed JSON object, or (if JSON parsing failed) a raw string.
type Payload struct {
	Kind  PayloadKind
	Bytes []byte
	JSON  map[string]any
	Text  string
}

// Frame is a single decoded message of the upstream wire protocol.
type Frame struct {
	MessageType   MessageType
	Flags         byte
	Serialization byte
	Compression   byte

	Sequence  *uint32
	EventID   *EventID
	SessionID string // present whenever the frame carries a sessionId prefix
	ErrorCode uint32 // valid only when MessageType == MsgErrorInfo

	Payload Payload
}

// EncodeFrame composes a wire frame. payload is either []byte (taken
// as-is) or any JSON-marshalable value; it is JSON-encoded otherwise.
// Raw-byte payloads on an AUDIO_ONLY_REQUEST frame are serialized as
// SerializationNone; everything else is SerializationJSON. When
// compress is true the serialized payload is gzipped before the
// length prefix is computed.
func EncodeFrame(msgType MessageType, flags byte, eventID *EventID, sessionID *string, sequence *uint32, payload any, compress bool) ([]byte, error) {
	raw, isRaw := payload.([]byte)

	serialization := SerializationJSON
	if isRaw && msgType == MsgAudioOnlyRequest {
		serialization = SerializationNone
	}

	var body []byte
	if isRaw {
		body = raw
	} else {
		encoded, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode frame payload: %w", err)
		}
		body = encoded
	}

	compression := CompressionNone
	if compress {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, fmt.Errorf("gzip frame payload: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("close gzip writer: %w", err)
		}
		body = buf.Bytes()
		compression = CompressionGZIP
	}

	header := make([]byte, 4)
	header[0] = ProtocolVersion1<<4 | HeaderSize4
	header[1] = byte(msgType)<<4 | flags
	header[2] = serialization<<4 | compression
	header[3] = 0 // reserved

	out := make([]byte, 0, len(header)+len(body)+16)
	out = append(out, header...)

	if sequence != nil {
		var seqBuf [4]byte
		binary.BigEndian.PutUint32(seqBuf[:], *sequence)
		out = append(out, seqBuf[:]...)
	}
	if eventID != nil {
		var evBuf [4]byte
		binary.BigEndian.PutUint32(evBuf[:], uint32(*eventID))
		out = append(out, evBuf[:]...)
	}
	if sessionID != nil {
		sidBytes := []byte(*sessionID)
		var sizeBuf [4]byte
		binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(sidBytes)))
		out = append(out, sizeBuf[:]...)
		out = append(out, sidBytes...)
	}

	var payloadSizeBuf [4]byte
	binary.BigEndian.PutUint32(payloadSizeBuf[:], uint32(len(body)))
	out = append(out, payloadSizeBuf[:]...)
	out = append(out, body...)

	return out, nil
}

// DecodeFrame parses a wire frame. It returns an error for an
// under-length buffer or an unrecognized message type; callers treat
// both as "drop and log" per the protocol's error-handling policy
// rather than as fatal to the connection.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("doubao: frame too short (%d bytes)", len(data))
	}

	headerSize := data[0] & 0x0F
	msgType := MessageType(data[1] >> 4)
	flags := data[1] & 0x0F
	serialization := data[2] >> 4
	compression := data[2] & 0x0F

	offset := int(headerSize) * 4
	if offset < 4 || offset > len(data) {
		return nil, fmt.Errorf("doubao: invalid header size %d", headerSize)
	}

	f := &Frame{
		MessageType:   msgType,
		Flags:         flags,
		Serialization: serialization,
		Compression:   compression,
	}

	switch msgType {
	case MsgFullServerResponse, MsgServerACK, MsgFullClientRequest, MsgAudioOnlyRequest:
		if flags&FlagHasSequence != 0 {
			if offset+4 > len(data) {
				return nil, fmt.Errorf("doubao: truncated sequence field")
			}
			seq := binary.BigEndian.Uint32(data[offset : offset+4])
			f.Sequence = &seq
			offset += 4
		}
		if flags&FlagHasEvent != 0 {
			if offset+4 > len(data) {
				return nil, fmt.Errorf("doubao: truncated event field")
			}
			ev := EventID(binary.BigEndian.Uint32(data[offset : offset+4]))
			f.EventID = &ev
			offset += 4
		}
		hasSessionID := true
		if msgType == MsgFullClientRequest || msgType == MsgAudioOnlyRequest {
			// Client requests carry a sessionId only for session-scoped
			// events; START_CONNECTION and FINISH_CONNECTION have none.
			hasSessionID = f.EventID != nil && *f.EventID != EventStartConnection && *f.EventID != EventFinishConnection
		}
		if hasSessionID {
			if offset+4 > len(data) {
				return nil, fmt.Errorf("doubao: truncated sessionId size")
			}
			sidSize := int32(binary.BigEndian.Uint32(data[offset : offset+4]))
			offset += 4
			if sidSize < 0 || offset+int(sidSize) > len(data) {
				return nil, fmt.Errorf("doubao: invalid sessionId size %d", sidSize)
			}
			f.SessionID = string(data[offset : offset+int(sidSize)])
			offset += int(sidSize)
		}

		if offset+4 > len(data) {
			return nil, fmt.Errorf("doubao: truncated payloadSize")
		}
		payloadSize := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(payloadSize) > len(data) {
			return nil, fmt.Errorf("doubao: truncated payload")
		}
		body := data[offset : offset+int(payloadSize)]
		f.Payload = decodePayload(body, serialization, compression)

	case MsgErrorInfo:
		if offset+4 > len(data) {
			return nil, fmt.Errorf("doubao: truncated errorCode")
		}
		f.ErrorCode = binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4

		if offset+4 > len(data) {
			return nil, fmt.Errorf("doubao: truncated payloadSize")
		}
		payloadSize := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(payloadSize) > len(data) {
			return nil, fmt.Errorf("doubao: truncated payload")
		}
		body := data[offset : offset+int(payloadSize)]
		f.Payload = decodePayload(body, serialization, compression)

	default:
		return nil, fmt.Errorf("doubao: unknown message type %d", msgType)
	}

	return f, nil
}

func decodePayload(body []byte, serialization, compression byte) Payload {
	if compression == CompressionGZIP && len(body) > 0 {
		decompressed, err := gunzip(body)
		if err != nil {
			log.Printf("doubao: gzip decompress failed, keeping raw bytes: %v", err)
		} else {
			body = decompressed
		}
	}

	if serialization != SerializationJSON {
		return Payload{Kind: PayloadBinary, Bytes: body}
	}

	if len(body) == 0 {
		return Payload{Kind: PayloadJSON, JSON: map[string]any{}}
	}

	var parsed map[string]any
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return Payload{Kind: PayloadText, Text: string(body)}
	}
	return Payload{Kind: PayloadJSON, JSON: parsed}
}

func gunzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
