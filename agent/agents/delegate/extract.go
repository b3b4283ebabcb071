package delegate

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Response is one of the reply shapes a language model may hand back.
// The set is closed: PlainText, MessageList, ContentParts, ChoiceList and
// WrappedOutput.
type Response interface {
	isResponse()
}

type PlainText string

// MessageList is a conversation; its text is the newest assistant message
// that carries any.
type MessageList []*schema.Message

type ContentParts []schema.ChatMessagePart

type Choice struct {
	Text    string
	Message *schema.Message
}

// ChoiceList is a completion with alternatives; the first non-empty one wins.
type ChoiceList []Choice

type WrappedOutput struct {
	Output Response
}

func (PlainText) isResponse()     {}
func (MessageList) isResponse()   {}
func (ContentParts) isResponse()  {}
func (ChoiceList) isResponse()    {}
func (WrappedOutput) isResponse() {}

// FromMessage classifies a single model message.
func FromMessage(msg *schema.Message) Response {
	if msg == nil {
		return PlainText("")
	}
	if strings.TrimSpace(msg.Content) == "" && len(msg.MultiContent) > 0 {
		return ContentParts(msg.MultiContent)
	}
	return PlainText(msg.Content)
}

// ExtractText normalizes any Response to the text shown to the user.
func ExtractText(r Response) string {
	switch v := r.(type) {
	case nil:
		return ""
	case PlainText:
		return strings.TrimSpace(string(v))
	case MessageList:
		for i := len(v) - 1; i >= 0; i-- {
			msg := v[i]
			if msg == nil || msg.Role != schema.Assistant {
				continue
			}
			if text := ExtractText(FromMessage(msg)); text != "" {
				return text
			}
		}
		return ""
	case ContentParts:
		texts := make([]string, 0, len(v))
		for _, part := range v {
			if part.Type != schema.ChatMessagePartTypeText {
				continue
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n")
	case ChoiceList:
		for _, c := range v {
			text := strings.TrimSpace(c.Text)
			if text == "" && c.Message != nil {
				text = ExtractText(FromMessage(c.Message))
			}
			if text != "" {
				return text
			}
		}
		return ""
	case WrappedOutput:
		return ExtractText(v.Output)
	default:
		return ""
	}
}
