package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/collab-messenger/relay/internal/messages"
)

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		content string
		wantErr string
	}{
		{"text ok", messages.KindText, "hello there", ""},
		{"text at limit", messages.KindText, strings.Repeat("a", maxContentLength), ""},
		{"text empty", messages.KindText, "", "message body cannot be empty"},
		{"text whitespace only", messages.KindText, "   \n\t", "message body cannot be empty"},
		{"text too long", messages.KindText, strings.Repeat("a", maxContentLength+1), "message body is too long"},
		{"gif ok", messages.KindGif, "https://media.example.com/cat.gif", ""},
		{"gif empty", messages.KindGif, "", "attachment uri is required"},
		{"file ok", messages.KindFile, "https://bucket.s3.amazonaws.com/report.pdf", ""},
		{"file empty", messages.KindFile, "", "attachment uri is required"},
		{"unknown kind", "sticker", "anything", "unknown message kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContent(tt.kind, tt.content)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTruncatePreviewKeepsValidUTF8(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncatePreview(short, previewLength))

	long := strings.Repeat("日本語のテキスト", 40)
	got := truncatePreview(long, previewLength)
	assert.Equal(t, previewLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestValidateContentCountsRunesNotBytes(t *testing.T) {
	// Multi-byte characters count once each.
	content := strings.Repeat("é", maxContentLength)
	assert.NoError(t, validateContent(messages.KindText, content))
}
