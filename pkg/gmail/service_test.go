package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"unicode/utf8"

	"google.golang.org/api/gmail/v1"

	"github.com/stretchr/testify/assert"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractBodyPrefersTextPlain(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<b>html</b>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("plain text")}},
		},
	}

	assert.Equal(t, "plain text", extractBody(payload))
}

func TestExtractBodyRecursesNestedParts(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("nested body")}},
				},
			},
		},
	}

	assert.Equal(t, "nested body", extractBody(payload))
}

func TestExtractBodySinglePart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: b64("hello")},
	}
	assert.Equal(t, "hello", extractBody(payload))
}

func TestExtractBodyEmpty(t *testing.T) {
	assert.Equal(t, "", extractBody(nil))
	assert.Equal(t, "", extractBody(&gmail.MessagePart{MimeType: "text/plain"}))
}

func TestMessageToEmail(t *testing.T) {
	msg := &gmail.Message{
		Id:      "m1",
		Snippet: "preview",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "alice@example.com"},
				{Name: "Subject", Value: "Hi"},
			},
			Body: &gmail.MessagePartBody{Data: b64("body text")},
		},
	}

	email := messageToEmail(msg)
	assert.Equal(t, "m1", email.ID)
	assert.Equal(t, "alice@example.com", email.Sender)
	assert.Equal(t, "Hi", email.Subject)
	assert.Equal(t, "preview", email.Snippet)
	assert.Equal(t, "body text", email.Body)
}

func TestMessageToEmailDefaults(t *testing.T) {
	email := messageToEmail(&gmail.Message{Id: "m2", Payload: &gmail.MessagePart{}})
	assert.Equal(t, "unknown", email.Sender)
	assert.Equal(t, "(no subject)", email.Subject)
}

func TestMessageToEmailTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", bodyLimit+500)
	msg := &gmail.Message{
		Id: "m3",
		Payload: &gmail.MessagePart{
			Body: &gmail.MessagePartBody{Data: b64(long)},
		},
	}

	email := messageToEmail(msg)
	assert.Len(t, email.Body, bodyLimit)
}

func TestAuthURLCarriesState(t *testing.T) {
	svc := NewService("client-id", "secret", "http://localhost")
	url := svc.AuthURL("state-token-123")

	assert.Contains(t, url, "state=state-token-123")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "prompt=consent")
	assert.Contains(t, url, "gmail.modify")
}

func TestMessageToEmailBodyCapRespectsRuneBoundary(t *testing.T) {
	// A two-byte rune straddles the cap; the cut must land before it.
	long := strings.Repeat("x", bodyLimit-1) + "é" + "tail"
	msg := &gmail.Message{
		Id: "m4",
		Payload: &gmail.MessagePart{
			Body: &gmail.MessagePartBody{Data: b64(long)},
		},
	}

	email := messageToEmail(msg)
	assert.True(t, utf8.ValidString(email.Body))
	assert.LessOrEqual(t, len(email.Body), bodyLimit)
	assert.Equal(t, strings.Repeat("x", bodyLimit-1), email.Body)
}
