package conversation

import (
	"errors"
	"strings"

	"github.com/m3rciful/memebot/core/telegram/callbacks"
	"github.com/m3rciful/memebot/meme/provider"
)

// SkipSentinel is the caption input meaning "leave this caption empty".
const SkipSentinel = "."

// compositeKeywords must all appear in a text for the courtesy menu resend.
var compositeKeywords = []string{"/start", "/help", "/search", "/create", "hi", "hey", "hello"}

// Transition computes the reaction to ev in state s. It performs no I/O.
func Transition(s State, ev Event) Step {
	if s == nil {
		s = Idle{}
	}
	switch ev := ev.(type) {
	case StartEvent:
		return startMenu()
	case ResetEvent:
		return Step{Next: Idle{}, Effects: []Effect{SendText{Text: MsgReset}}}
	case SearchEvent:
		return onSearch(ev.Term)
	case ButtonEvent:
		return onButton(s, ev.Command)
	case PhotoEvent:
		return onPhoto(s, ev.FileID)
	case TextEvent:
		return onText(s, ev.Text)
	}
	return Step{}
}

// ResolveCaption applies the skip sentinel.
func ResolveCaption(text string) string {
	if text == SkipSentinel {
		return ""
	}
	return text
}

// IsGreeting reports whether text is a bare greeting.
func IsGreeting(text string) bool {
	switch strings.ToLower(text) {
	case "hi", "hey", "hello":
		return true
	}
	return false
}

func looksLikeEveryCommand(text string) bool {
	for _, kw := range compositeKeywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

func menuKeyboard() Keyboard {
	return Keyboard{{
		{Label: BtnAI, Command: callbacks.Command{Action: callbacks.ActionAIType}},
		{Label: BtnCustom, Command: callbacks.Command{Action: callbacks.ActionCustomType}},
		{Label: BtnRandom, Command: callbacks.Command{Action: callbacks.ActionTemplate}},
		{Label: BtnPreset, Command: callbacks.Command{Action: callbacks.ActionSearchType}},
	}}
}

func returnKeyboard() Keyboard {
	return Keyboard{{{Label: BtnReturn, Command: callbacks.Command{Action: callbacks.ActionReturn}}}}
}

func selectKeyboard(templateID string) Keyboard {
	return Keyboard{{{
		Label:   BtnSelect,
		Command: callbacks.Command{Action: callbacks.ActionTemplateYes, TemplateID: templateID},
	}}}
}

func say(key MessageKey) Effect { return SendText{Text: key} }

func startMenu() Step {
	return Step{
		Next: Started{},
		Effects: []Effect{
			say(MsgWelcome),
			SendText{Text: MsgMenu, Keyboard: menuKeyboard()},
		},
	}
}

// finishWith ends the round with text and the Return button.
func finishWith(key MessageKey) Step {
	return Step{
		Next:    Finished{},
		Effects: []Effect{SendText{Text: key, Keyboard: returnKeyboard()}},
	}
}

// failed is the recovery for any guarded external call.
func failed() Step { return finishWith(MsgGenerateFailed) }

// Unhandled is the catch-all recovery step.
func Unhandled() Step { return finishWith(MsgUnhandled) }

func onSearch(term string) Step {
	term = strings.TrimSpace(term)
	if term == "" {
		return Step{Next: Idle{}, Effects: []Effect{say(MsgSearchUsage)}}
	}
	return Step{Effects: []Effect{
		say(MsgSearching),
		say(MsgSearchResults),
		SearchMemes{Term: term, Then: searchResults},
	}}
}

func searchResults(urls []string, err error) Step {
	if err != nil && !errors.Is(err, provider.ErrNoResults) {
		return failed()
	}
	if len(urls) == 0 {
		return finishWith(MsgMemeNotFound)
	}
	effects := make([]Effect, 0, len(urls)+1)
	for _, u := range urls {
		effects = append(effects, SendPhoto{URL: u})
	}
	effects = append(effects, SendText{Text: MsgReturnPrompt, Keyboard: returnKeyboard()})
	return Step{Next: Finished{}, Effects: effects}
}

func onButton(s State, cmd callbacks.Command) Step {
	switch cmd.Action {
	case callbacks.ActionTemplate:
		return Step{Effects: []Effect{
			say(MsgTemplateSearch),
			SearchRandomTemplates{Then: templateResults},
		}}
	case callbacks.ActionSearchType:
		return Step{Next: TemplateSearch{}, Effects: []Effect{say(MsgPresetHint)}}
	case callbacks.ActionTemplateYes:
		return onTemplateSelected(s, cmd.TemplateID)
	case callbacks.ActionCustomType:
		return Step{Next: CustomUpload{}, Effects: []Effect{say(MsgUploadPrompt)}}
	case callbacks.ActionAIType:
		return Step{Next: AIPrompt{}, Effects: []Effect{say(MsgAIPrompt)}}
	case callbacks.ActionReturn:
		return startMenu()
	}
	return Step{}
}

func templateResults(templates []provider.Template, err error) Step {
	if err != nil && !errors.Is(err, provider.ErrNoResults) {
		return failed()
	}
	if len(templates) == 0 {
		return Step{Effects: []Effect{say(MsgTemplateNotFound)}}
	}
	return Step{Effects: []Effect{
		say(MsgTemplateChoose),
		ShowTemplates{Templates: templates, Then: func(shown []TemplateMessage) Step {
			return Step{Next: TemplateChoice{Candidates: shown}}
		}},
	}}
}

func onTemplateSelected(s State, templateID string) Step {
	var candidates []TemplateMessage
	switch v := s.(type) {
	case TemplateChoice:
		candidates = v.Candidates
	case TemplateTop:
		candidates = v.Candidates
	default:
		return Step{}
	}
	chosen, ok := findCandidate(candidates, templateID)
	if !ok {
		return Step{}
	}
	return Step{
		Next: TemplateTop{TemplateID: chosen.TemplateID, Candidates: candidates},
		Effects: []Effect{
			SendText{Text: MsgTemplateChosen, ReplyTo: chosen.MessageID},
			say(MsgHeaderPrompt),
		},
	}
}

func onPhoto(s State, fileID string) Step {
	if _, ok := s.(CustomUpload); !ok || fileID == "" {
		return Step{}
	}
	return Step{Next: CustomTop{FileID: fileID}, Effects: []Effect{say(MsgHeaderPrompt)}}
}

func onText(s State, text string) Step {
	if IsGreeting(text) {
		return startMenu()
	}
	switch v := s.(type) {
	case TemplateTop:
		return Step{
			Next:    TemplateBottom{TemplateID: v.TemplateID, TopText: ResolveCaption(text)},
			Effects: []Effect{say(MsgFooterPrompt)},
		}
	case TemplateBottom:
		return Step{Effects: []Effect{CaptionTemplate{
			TemplateID: v.TemplateID,
			Top:        v.TopText,
			Bottom:     ResolveCaption(text),
			Then:       deliverURL,
		}}}
	case CustomTop:
		return Step{
			Next:    CustomBottom{FileID: v.FileID, TopText: ResolveCaption(text)},
			Effects: []Effect{say(MsgFooterPrompt)},
		}
	case CustomBottom:
		return Step{Effects: []Effect{RenderMeme{
			Source: ImageSource{FileID: v.FileID},
			Top:    v.TopText,
			Bottom: ResolveCaption(text),
			Then:   deliverFile,
		}}}
	case AIPrompt:
		return Step{Effects: []Effect{
			say(MsgGenerating),
			GenerateImage{Prompt: text, Then: func(url string, err error) Step {
				return generated(text, url, err)
			}},
		}}
	case AITop:
		return Step{
			Next:    AIBottom{ImageURL: v.ImageURL, TopText: ResolveCaption(text)},
			Effects: []Effect{say(MsgFooterPrompt)},
		}
	case AIBottom:
		return Step{Effects: []Effect{
			say(MsgCompositing),
			RenderMeme{
				Source: ImageSource{URL: v.ImageURL},
				Top:    v.TopText,
				Bottom: ResolveCaption(text),
				Then:   deliverFile,
			},
		}}
	}
	if looksLikeEveryCommand(text) {
		return Step{Next: Idle{}, Effects: []Effect{SendText{Text: MsgMenu, Keyboard: menuKeyboard()}}}
	}
	return Step{}
}

func generated(prompt, url string, err error) Step {
	switch {
	case errors.Is(err, provider.ErrContentRejected):
		return Step{Effects: []Effect{SendText{Text: MsgModeration, Keyboard: returnKeyboard()}}}
	case err != nil:
		return failed()
	}
	return Step{
		Next: AITop{ImageURL: url, Prompt: prompt},
		Effects: []Effect{
			SendPhoto{URL: url},
			say(MsgHeaderPrompt),
		},
	}
}

func deliver(photo SendPhoto) Step {
	return Step{
		Next: Finished{},
		Effects: []Effect{
			say(MsgMemeReady),
			photo,
			SendText{Text: MsgReturnPrompt, Keyboard: returnKeyboard()},
		},
	}
}

func deliverURL(url string, err error) Step {
	if err != nil {
		return failed()
	}
	return deliver(SendPhoto{URL: url})
}

func deliverFile(path string, err error) Step {
	if err != nil {
		return failed()
	}
	return deliver(SendPhoto{Path: path})
}
