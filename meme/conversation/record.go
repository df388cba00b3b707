package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the persisted form of a State. Field names match the records
// written by earlier versions of the bot so existing sessions stay readable.
type Record struct {
	State      StateName         `json:"state"`
	TemplateID string            `json:"templateId,omitempty"`
	Image      string            `json:"image,omitempty"`
	TopText    string            `json:"topText,omitempty"`
	BottomText string            `json:"bottomText,omitempty"`
	TempMsgMap []TemplateMessage `json:"tempMsgMap,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// ToRecord flattens s into its persisted form.
func ToRecord(s State) Record {
	if s == nil {
		return Record{State: StateNone}
	}
	rec := Record{State: s.Name()}
	switch v := s.(type) {
	case TemplateChoice:
		rec.TempMsgMap = v.Candidates
	case TemplateTop:
		rec.TemplateID = v.TemplateID
		rec.TempMsgMap = v.Candidates
	case TemplateBottom:
		rec.TemplateID = v.TemplateID
		rec.TopText = v.TopText
	case CustomTop:
		rec.Image = v.FileID
	case CustomBottom:
		rec.Image = v.FileID
		rec.TopText = v.TopText
	case AITop:
		rec.Image = v.ImageURL
		rec.Text = v.Prompt
	case AIBottom:
		rec.Image = v.ImageURL
		rec.TopText = v.TopText
	}
	return rec
}

// FromRecord rebuilds the State named by rec.
func FromRecord(rec Record) (State, error) {
	switch rec.State {
	case StateNone:
		return Idle{}, nil
	case StateStarted:
		return Started{}, nil
	case StateTemplateSearch:
		return TemplateSearch{}, nil
	case StateTemplateYes:
		return TemplateChoice{Candidates: rec.TempMsgMap}, nil
	case StateTemplateTop:
		return TemplateTop{TemplateID: rec.TemplateID, Candidates: rec.TempMsgMap}, nil
	case StateTemplateBottom:
		return TemplateBottom{TemplateID: rec.TemplateID, TopText: rec.TopText}, nil
	case StateTemplateFinished:
		return Finished{}, nil
	case StateCustomUpload:
		return CustomUpload{}, nil
	case StateCustomTop:
		return CustomTop{FileID: rec.Image}, nil
	case StateCustomBottom:
		return CustomBottom{FileID: rec.Image, TopText: rec.TopText}, nil
	case StateAI:
		return AIPrompt{}, nil
	case StateAITop:
		return AITop{ImageURL: rec.Image, Prompt: rec.Text}, nil
	case StateAIBottom:
		return AIBottom{ImageURL: rec.Image, TopText: rec.TopText}, nil
	}
	return Idle{}, fmt.Errorf("unknown state %q", rec.State)
}

// Encode serializes s.
func Encode(s State) ([]byte, error) {
	return json.Marshal(ToRecord(s))
}

// Decode parses a stored record. Empty input is Idle. Anything unparsable is
// Idle together with a malformed_session error the caller may log.
func Decode(data []byte) (State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Idle{}, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Idle{}, &Error{Kind: KindMalformedSession, Op: "decode", Err: err}
	}
	s, err := FromRecord(rec)
	if err != nil {
		return Idle{}, &Error{Kind: KindMalformedSession, Op: "decode", Err: err}
	}
	return s, nil
}
