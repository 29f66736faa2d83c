package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// encode renders v as canonical protobuf JSON through structpb.Value.
func encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(pv)
}

// Intent actions accepted on the command topic.
const (
	ActionPress   = "press"
	ActionRelease = "release"
	ActionSpeed   = "speed"
	ActionChat    = "chat"
)

// Intent is a decoded remote request.
type Intent struct {
	Action    string
	Direction string
	Value     float64
	Text      string
}

// decodeIntent parses a command payload such as
// {"action":"press","direction":"forward"}.
func decodeIntent(payload []byte) (Intent, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(payload, &s); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	fields := s.GetFields()
	in := Intent{
		Action:    strings.ToLower(fields["action"].GetStringValue()),
		Direction: fields["direction"].GetStringValue(),
		Value:     fields["value"].GetNumberValue(),
		Text:      fields["text"].GetStringValue(),
	}

	switch in.Action {
	case ActionRelease:
	case ActionPress:
		if in.Direction == "" {
			return Intent{}, fmt.Errorf("press intent without direction")
		}
	case ActionSpeed:
		if _, ok := fields["value"].GetKind().(*structpb.Value_NumberValue); !ok {
			return Intent{}, fmt.Errorf("speed intent without numeric value")
		}
	case ActionChat:
		if strings.TrimSpace(in.Text) == "" {
			return Intent{}, fmt.Errorf("chat intent without text")
		}
	default:
		return Intent{}, fmt.Errorf("unknown intent action %q", in.Action)
	}
	return in, nil
}
