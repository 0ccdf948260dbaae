package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendAndPlainText(t *testing.T) {
	conv := Conversation{
		NewMessage(RoleSystem, "be brief"),
		NewMessage(RoleUser, "hello"),
	}
	conv = conv.Append(NewMessage(RoleAssistant, "hi there"))

	require.Len(t, conv, 3)
	text := conv.PlainText()
	assert.Contains(t, text, "[system]: be brief")
	assert.Contains(t, text, "[user]: hello")
	assert.Contains(t, text, "[assistant]: hi there")
}

func TestNewToolResultMessage(t *testing.T) {
	m := NewToolResultMessage("call-1", "echo", `{"x":1}`)
	assert.Equal(t, RoleTool, m.Role)
	assert.Equal(t, "call-1", m.ToolCallID)
	assert.Equal(t, "echo", m.ToolName)
	assert.Equal(t, `{"x":1}`, m.Text)
	assert.NotEqual(t, "", m.ID.String())
}

func TestImageDataURL(t *testing.T) {
	img := &ImageContent{
		MediaType:    "image/png",
		ImageContent: []byte{0x01, 0x02},
	}
	assert.Equal(t, "data:image/png;base64,AQI=", img.DataURL())

	linked := &ImageContent{ImageURL: "https://example.com/cat.png"}
	assert.Equal(t, "https://example.com/cat.png", linked.DataURL())
}
