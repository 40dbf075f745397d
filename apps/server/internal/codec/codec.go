package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server frame types
const (
	FrameState  = "state"
	FrameError  = "error"
	FrameResult = "result"
)

// Command is a client request, sent as a JSON text frame.
type Command struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Option    string          `json:"option,omitempty"`
	NPCID     string          `json:"npcId,omitempty"`
	Answers   json.RawMessage `json:"answers,omitempty"`
}

// DecodeCommand parses a text frame.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("decode command: missing type")
	}
	return cmd, nil
}

// ToStruct converts any JSON-encodable value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

// WrapFrame builds the envelope {type, seq, tsMs, sessionId, payload}.
func WrapFrame(kind string, seq uint64, tsMs int64, sessionID string, payload any) (*structpb.Struct, error) {
	body, err := ToStruct(payload)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":      structpb.NewStringValue(kind),
		"seq":       structpb.NewNumberValue(float64(seq)),
		"tsMs":      structpb.NewNumberValue(float64(tsMs)),
		"sessionId": structpb.NewStringValue(sessionID),
		"payload":   structpb.NewStructValue(body),
	}}, nil
}

// EncodeFrame marshals a frame into a binary message.
func EncodeFrame(kind string, seq uint64, tsMs int64, sessionID string, payload any) ([]byte, error) {
	frame, err := WrapFrame(kind, seq, tsMs, sessionID, payload)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(frame)
}

// Frame is a decoded server frame.
type Frame struct {
	Type      string
	Seq       uint64
	SessionID string
	Payload   map[string]any
}

// DecodeFrame is the client-side inverse of EncodeFrame.
func DecodeFrame(data []byte) (Frame, error) {
	var pbFrame structpb.Struct
	if err := proto.Unmarshal(data, &pbFrame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	m := pbFrame.AsMap()
	f := Frame{}
	f.Type, _ = m["type"].(string)
	f.SessionID, _ = m["sessionId"].(string)
	if seq, ok := m["seq"].(float64); ok {
		f.Seq = uint64(seq)
	}
	f.Payload, _ = m["payload"].(map[string]any)
	return f, nil
}
