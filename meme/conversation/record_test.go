package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_AllStates(t *testing.T) {
	states := []State{
		Idle{},
		Started{},
		TemplateSearch{},
		TemplateChoice{Candidates: []TemplateMessage{{TemplateID: "1", MessageID: 10}}},
		TemplateTop{TemplateID: "1", Candidates: []TemplateMessage{{TemplateID: "1", MessageID: 10}}},
		TemplateBottom{TemplateID: "1", TopText: "top"},
		Finished{},
		CustomUpload{},
		CustomTop{FileID: "AgAC"},
		CustomBottom{FileID: "AgAC", TopText: "top"},
		AIPrompt{},
		AITop{ImageURL: "https://oai/x.png", Prompt: "a cat"},
		AIBottom{ImageURL: "https://oai/x.png", TopText: "top"},
	}
	require.Len(t, states, len(StateNames))
	for i, s := range states {
		assert.Equal(t, StateNames[i], s.Name())
		data, err := Encode(s)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, s, got, string(data))
	}
}

func TestEncode_FieldNames(t *testing.T) {
	data, err := Encode(TemplateTop{TemplateID: "42", Candidates: []TemplateMessage{{TemplateID: "42", MessageID: 7}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"CREATE_TEMPLATE_TOP","templateId":"42","tempMsgMap":[{"templateId":"42","messageId":7}]}`, string(data))

	data, err = Encode(AITop{ImageURL: "u", Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"CREATE_AI_IMAGE_TOP","image":"u","text":"p"}`, string(data))

	data, err = Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"NONE"}`, string(data))
}

func TestDecode_LegacyRecord(t *testing.T) {
	// Records written by earlier deployments carry extra fields after a spread.
	raw := `{"state":"CREATE_TEMPLATE_TOP","tempMsgMap":[{"templateId":"9","messageId":3}],"templateId":"9"}`
	s, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TemplateTop{TemplateID: "9", Candidates: []TemplateMessage{{TemplateID: "9", MessageID: 3}}}, s)
}

func TestDecode_MalformedIsIdle(t *testing.T) {
	for _, raw := range []string{"{", "not json", `{"state":"BOGUS"}`, `{"state":42}`, `{}`} {
		s, err := Decode([]byte(raw))
		assert.Equal(t, Idle{}, s, raw)
		require.Error(t, err, raw)
		assert.Equal(t, KindMalformedSession, KindOf(err), raw)
	}
}

func TestDecode_EmptyIsIdle(t *testing.T) {
	for _, raw := range []string{"", "  \n"} {
		s, err := Decode([]byte(raw))
		assert.NoError(t, err)
		assert.Equal(t, Idle{}, s)
	}
}
