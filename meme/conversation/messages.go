package conversation

import "strings"

// MessageKey names a user-facing text. Keys double as the config keys under
// messages: for overrides.
type MessageKey string

const (
	MsgWelcome          MessageKey = "welcome"
	MsgMenu             MessageKey = "menu"
	MsgReset            MessageKey = "reset"
	MsgSearchUsage      MessageKey = "search_usage"
	MsgSearching        MessageKey = "searching"
	MsgSearchResults    MessageKey = "search_results"
	MsgMemeNotFound     MessageKey = "meme_not_found"
	MsgReturnPrompt     MessageKey = "return_prompt"
	MsgTemplateSearch   MessageKey = "template_searching"
	MsgTemplateChoose   MessageKey = "template_choose"
	MsgTemplateNotFound MessageKey = "template_not_found"
	MsgPresetHint       MessageKey = "preset_hint"
	MsgTemplateChosen   MessageKey = "template_chosen"
	MsgHeaderPrompt     MessageKey = "header_prompt"
	MsgFooterPrompt     MessageKey = "footer_prompt"
	MsgUploadPrompt     MessageKey = "upload_prompt"
	MsgAIPrompt         MessageKey = "ai_prompt"
	MsgGenerating       MessageKey = "generating"
	MsgModeration       MessageKey = "moderation"
	MsgCompositing      MessageKey = "compositing"
	MsgMemeReady        MessageKey = "meme_ready"
	MsgGenerateFailed   MessageKey = "generate_failed"
	MsgUnhandled        MessageKey = "unhandled"

	BtnAI     MessageKey = "button_ai"
	BtnCustom MessageKey = "button_custom"
	BtnRandom MessageKey = "button_randomizer"
	BtnPreset MessageKey = "button_preset"
	BtnReturn MessageKey = "button_return"
	BtnSelect MessageKey = "button_select"
)

// NamePlaceholder is replaced with the user's first name.
const NamePlaceholder = "{name}"

var defaultMessages = map[MessageKey]string{
	MsgWelcome: "🍔 Welcome to MemeAI 🌭",
	MsgMenu: "Your all in 1 tool to edit, generate and randomize your own custom memes. To begin please select from the Below List\n\n" +
		"🖼 AI Image - Create an AI generate image + add your own text\n" +
		"🌍 Custom Image - Insert your own picture + add your own text\n" +
		"🚨 Randomizer - Generates multiple memes based on your search term\n" +
		"✔️ Preset - Searches the Internet for pre-existing memes",
	MsgReset:            "Resetted state. Now you can try searching or creating memes again",
	MsgSearchUsage:      "Send search term like /search <search-term>",
	MsgSearching:        "Searching...",
	MsgSearchResults:    "Enjoy your tailored content below 👇",
	MsgMemeNotFound:     "Sorry {name}, I couldn't find a meme for you 😢",
	MsgReturnPrompt:     "Please select the return button to start again",
	MsgTemplateSearch:   "Searching Template Photos to begin your meme creation🔎",
	MsgTemplateChoose:   "Choose from any of the templates below👇",
	MsgTemplateNotFound: "Sorry {name}, I couldn't find a meme template for you 😢. Please try again",
	MsgPresetHint:       "Type /search <search-term> to received personalised & tailored content 🔎",
	MsgTemplateChosen:   "Great Choice, Now lets add a Header and footer✅",
	MsgHeaderPrompt:     "Write your 'Header' below (Type . to skip) ↩️",
	MsgFooterPrompt:     "Write your 'Footer' below (Type . to skip) ↩️",
	MsgUploadPrompt:     "Please Insert your personal image below to begin⬇️",
	MsgAIPrompt:         "Please insert your word/phrase to generate an image below↩️",
	MsgGenerating:       "Generating Meme...",
	MsgModeration:       "🔞 AI prohibits the generation of images that contain rude, violent or explicit content. Please try again ⌨️",
	MsgCompositing:      "Adding the Header and Footer to Meme...",
	MsgMemeReady:        "Meme 👇",
	MsgGenerateFailed:   "Sorry {name}, There was some error & I couldn't generate a meme for you 😢. Please try again 🥺",
	MsgUnhandled:        "Sorry {name}, There was some error & I couldn't help you 😢. Please try again 🥺",

	BtnAI:     "🖼 AI Image",
	BtnCustom: "🌍 Custom Image",
	BtnRandom: "🚨 Randomizer",
	BtnPreset: "✔️ Preset",
	BtnReturn: "Return",
	BtnSelect: "Select",
}

// Messages resolves message keys to text.
type Messages struct {
	texts map[MessageKey]string
}

// NewMessages returns the default texts with overrides applied. Unknown keys
// and blank values are ignored.
func NewMessages(overrides map[string]string) Messages {
	texts := make(map[MessageKey]string, len(defaultMessages))
	for k, v := range defaultMessages {
		texts[k] = v
	}
	for k, v := range overrides {
		key := MessageKey(strings.TrimSpace(k))
		if _, known := defaultMessages[key]; !known || strings.TrimSpace(v) == "" {
			continue
		}
		texts[key] = v
	}
	return Messages{texts: texts}
}

// Text resolves key for a user. An empty name falls back to "there".
func (m Messages) Text(key MessageKey, firstName string) string {
	text, ok := m.texts[key]
	if !ok {
		text, ok = defaultMessages[key]
	}
	if !ok {
		return string(key)
	}
	if firstName == "" {
		firstName = "there"
	}
	return strings.ReplaceAll(text, NamePlaceholder, firstName)
}
