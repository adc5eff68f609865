package event

import (
	"encoding/json"
	"fmt"
)

// MarshalPayload serializes a payload to its type tag plus JSON body, the
// wire and archive form of the closed variant set.
func MarshalPayload(p Payload) (Type, []byte, error) {
	if p == nil {
		return "", nil, ErrUnknownType
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("marshal payload: %w", err)
	}
	return p.kind(), body, nil
}

// UnmarshalPayload reconstructs a payload from its type tag and JSON body.
// The switch is exhaustive over the variant set; an unknown tag is a
// structural error, never silently dropped.
func UnmarshalPayload(t Type, body []byte) (Payload, error) {
	var p Payload
	switch t {
	case TypeStatusChanged:
		p = &StatusChanged{}
	case TypeStartTimeProposed:
		p = &StartTimeProposed{}
	case TypeStartTimeSet:
		p = &StartTimeSet{}
	case TypeFlagChanged:
		p = &FlagChanged{}
	case TypeCourseChanged:
		p = &CourseChanged{}
	case TypeWindFix:
		p = &WindFix{}
	case TypeCompetitorRegistered:
		p = &CompetitorRegistered{}
	case TypeFinishPositioning:
		p = &FinishPositioning{}
	case TypeRevoked:
		p = &Revoked{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

// deref returns the value form so payloads compare and type-switch the same
// way whether they were built in process or decoded from the wire.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *StatusChanged:
		return *v
	case *StartTimeProposed:
		return *v
	case *StartTimeSet:
		return *v
	case *FlagChanged:
		return *v
	case *CourseChanged:
		return *v
	case *WindFix:
		return *v
	case *CompetitorRegistered:
		return *v
	case *FinishPositioning:
		return *v
	case *Revoked:
		return *v
	default:
		return p
	}
}
