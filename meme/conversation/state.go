// Package conversation drives the per-chat meme creation dialogue.
//
// The dialogue is a cyclic state machine. Transition is a pure function from
// the current State and an inbound Event to a Step: the next State plus the
// Effects to perform. Engine interprets those effects against the messenger,
// the providers and the renderer, and persists the resulting State once per
// event.
package conversation

// StateName is the persisted name of a conversation state.
type StateName string

const (
	StateNone             StateName = "NONE"
	StateStarted          StateName = "CREATE_STARTED"
	StateTemplateSearch   StateName = "CREATE_TEMPLATE_SEARCH"
	StateTemplateYes      StateName = "CREATE_TEMPLATE_YES"
	StateTemplateTop      StateName = "CREATE_TEMPLATE_TOP"
	StateTemplateBottom   StateName = "CREATE_TEMPLATE_BOTTOM"
	StateTemplateFinished StateName = "CREATE_TEMPLATE_FINISHED"
	StateCustomUpload     StateName = "CREATE_CUSTOM_IMAGE_UPLOAD"
	StateCustomTop        StateName = "CREATE_CUSTOM_IMAGE_TOP"
	StateCustomBottom     StateName = "CREATE_CUSTOM_IMAGE_BOTTOM"
	StateAI               StateName = "CREATE_AI"
	StateAITop            StateName = "CREATE_AI_IMAGE_TOP"
	StateAIBottom         StateName = "CREATE_AI_IMAGE_BOTTOM"
)

// StateNames lists every state in declaration order.
var StateNames = []StateName{
	StateNone, StateStarted, StateTemplateSearch, StateTemplateYes,
	StateTemplateTop, StateTemplateBottom, StateTemplateFinished,
	StateCustomUpload, StateCustomTop, StateCustomBottom,
	StateAI, StateAITop, StateAIBottom,
}

// State is one variant of the conversation. Each variant carries only the
// data meaningful in that stage.
type State interface {
	Name() StateName
	isState()
}

// TemplateMessage links a template shown to the user with the message that carried it.
type TemplateMessage struct {
	TemplateID string `json:"templateId"`
	MessageID  int    `json:"messageId"`
}

type (
	// Idle is the initial state.
	Idle struct{}
	// Started means the menu is on screen.
	Started struct{}
	// TemplateSearch waits for a /search command.
	TemplateSearch struct{}
	// TemplateChoice shows random templates waiting for a selection.
	TemplateChoice struct{ Candidates []TemplateMessage }
	// TemplateTop waits for the header of the chosen template.
	TemplateTop struct {
		TemplateID string
		Candidates []TemplateMessage
	}
	// TemplateBottom waits for the footer of the chosen template.
	TemplateBottom struct{ TemplateID, TopText string }
	// Finished closes a round and offers the Return button.
	Finished struct{}
	// CustomUpload waits for a photo.
	CustomUpload struct{}
	// CustomTop waits for the header of an uploaded photo.
	CustomTop struct{ FileID string }
	// CustomBottom waits for the footer of an uploaded photo.
	CustomBottom struct{ FileID, TopText string }
	// AIPrompt waits for the image generation phrase.
	AIPrompt struct{}
	// AITop waits for the header of a generated image.
	AITop struct{ ImageURL, Prompt string }
	// AIBottom waits for the footer of a generated image.
	AIBottom struct{ ImageURL, TopText string }
)

func (Idle) Name() StateName           { return StateNone }
func (Started) Name() StateName        { return StateStarted }
func (TemplateSearch) Name() StateName { return StateTemplateSearch }
func (TemplateChoice) Name() StateName { return StateTemplateYes }
func (TemplateTop) Name() StateName    { return StateTemplateTop }
func (TemplateBottom) Name() StateName { return StateTemplateBottom }
func (Finished) Name() StateName       { return StateTemplateFinished }
func (CustomUpload) Name() StateName   { return StateCustomUpload }
func (CustomTop) Name() StateName      { return StateCustomTop }
func (CustomBottom) Name() StateName   { return StateCustomBottom }
func (AIPrompt) Name() StateName       { return StateAI }
func (AITop) Name() StateName          { return StateAITop }
func (AIBottom) Name() StateName       { return StateAIBottom }

func (Idle) isState()           {}
func (Started) isState()        {}
func (TemplateSearch) isState() {}
func (TemplateChoice) isState() {}
func (TemplateTop) isState()    {}
func (TemplateBottom) isState() {}
func (Finished) isState()       {}
func (CustomUpload) isState()   {}
func (CustomTop) isState()      {}
func (CustomBottom) isState()   {}
func (AIPrompt) isState()       {}
func (AITop) isState()          {}
func (AIBottom) isState()       {}

// findCandidate returns the message that carried templateID.
func findCandidate(candidates []TemplateMessage, templateID string) (TemplateMessage, bool) {
	for _, c := range candidates {
		if c.TemplateID == templateID && c.MessageID != 0 {
			return c, true
		}
	}
	return TemplateMessage{}, false
}
