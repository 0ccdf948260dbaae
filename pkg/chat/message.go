package chat

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// ImageContent is an inline image attachment. Attachments are only sent on the
// first request of a run; follow-up steps carry text and tool results only.
type ImageContent struct {
	MediaType string `json:"media_type"`
	// ImageContent is either raw bytes or a URL, not both.
	ImageContent []byte `json:"image_content,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	ImageName    string `json:"image_name,omitempty"`
}

// DataURL renders the image as a data URL for providers that take inline images.
func (i *ImageContent) DataURL() string {
	if i.ImageURL != "" {
		return i.ImageURL
	}
	return fmt.Sprintf("data:%s;base64,%s", i.MediaType, base64.StdEncoding.EncodeToString(i.ImageContent))
}

// Message is a single entry in a conversation. Tool-result messages carry the
// id and name of the call they answer; all other roles leave those empty.
type Message struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`

	Images []*ImageContent `json:"images,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	Time time.Time `json:"time"`
}

type MessageOption func(*Message)

func WithImages(images []*ImageContent) MessageOption {
	return func(m *Message) { m.Images = images }
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) { m.Time = t }
}

func NewMessage(role Role, text string, options ...MessageOption) *Message {
	m := &Message{
		ID:   uuid.New(),
		Role: role,
		Text: text,
		Time: time.Now(),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// NewToolResultMessage builds the message injected back into the conversation
// after a tool ran. The text is the serialized tool result (or error string).
func NewToolResultMessage(toolCallID string, toolName string, result string) *Message {
	m := NewMessage(RoleTool, result)
	m.ToolCallID = toolCallID
	m.ToolName = toolName
	return m
}

func (m *Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Text, "\n"))
}

// Conversation is an ordered message history. It is owned by the caller and
// only appended to by the run loop for the duration of a single run.
type Conversation []*Message

func (c Conversation) Append(messages ...*Message) Conversation {
	return append(c, messages...)
}

// PlainText serializes the conversation for display and for character-based
// token estimation.
func (c Conversation) PlainText() string {
	var sb strings.Builder
	for _, m := range c {
		sb.WriteString(m.View())
		sb.WriteString("\n")
	}
	return sb.String()
}
