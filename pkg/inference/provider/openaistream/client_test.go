package openaistream

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/stromboli/pkg/chat"
	"github.com/go-go-golems/stromboli/pkg/inference/provider"
)

func TestMakeMessagesAttachesRequestImages(t *testing.T) {
	req := provider.Request{
		Messages: chat.Conversation{
			chat.NewMessage(chat.RoleSystem, "be brief"),
			chat.NewMessage(chat.RoleUser, "what is in this picture?"),
		},
		Images: []*chat.ImageContent{
			{MediaType: "image/png", ImageContent: []byte{1, 2}, ImageName: "cat.png"},
		},
	}

	msgs := makeMessages(req)
	require.Len(t, msgs, 2)
	assert.Equal(t, "be brief", msgs[0].Content)

	user := msgs[1]
	assert.Empty(t, user.Content)
	require.Len(t, user.MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, user.MultiContent[0].Type)
	assert.Equal(t, "what is in this picture?", user.MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, user.MultiContent[1].Type)
	assert.Equal(t, "data:image/png;base64,AQI=", user.MultiContent[1].ImageURL.URL)
}

func TestMakeMessagesIgnoresMessageLevelImages(t *testing.T) {
	withImage := chat.NewMessage(chat.RoleUser, "still just text",
		chat.WithImages([]*chat.ImageContent{
			{MediaType: "image/png", ImageContent: []byte{1, 2}},
		}))
	req := provider.Request{Messages: chat.Conversation{withImage}}

	msgs := makeMessages(req)
	require.Len(t, msgs, 1)
	assert.Equal(t, "still just text", msgs[0].Content)
	assert.Empty(t, msgs[0].MultiContent)
}

func TestMakeMessagesMapsToolResults(t *testing.T) {
	req := provider.Request{
		Messages: chat.Conversation{
			chat.NewToolResultMessage("call-1", "echo", `{"x":1}`),
		},
	}

	msgs := makeMessages(req)
	require.Len(t, msgs, 1)
	assert.Equal(t, "tool", msgs[0].Role)
	assert.Equal(t, "call-1", msgs[0].ToolCallID)
	assert.Equal(t, "echo", msgs[0].Name)
	assert.Equal(t, `{"x":1}`, msgs[0].Content)
}
