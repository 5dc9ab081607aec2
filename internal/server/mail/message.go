package mail

import (
	"encoding/base64"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	noSubject = "(No Subject)"
	noBody    = "(No body)"
)

// renderMessage flattens a full-format Gmail message into the text the
// reconciliation engine reads.
func renderMessage(m *gmail.Message) string {
	subject, body := noSubject, noBody
	if m.Payload != nil {
		if s := headerValue(m.Payload.Headers, "Subject"); s != "" {
			subject = s
		}
		if b, ok := extractBody(m.Payload); ok {
			body = b
		}
	}
	return "Subject: " + subject + "\nBody: " + body
}

func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody returns the first decodable body in a depth-first walk of the
// MIME tree.
func extractBody(part *gmail.MessagePart) (string, bool) {
	if part == nil {
		return "", false
	}
	if part.Body != nil && part.Body.Data != "" {
		if b, err := decodeBase64URL(part.Body.Data); err == nil {
			return string(b), true
		}
	}
	for _, sub := range part.Parts {
		if b, ok := extractBody(sub); ok {
			return b, true
		}
	}
	return "", false
}

// decodeBase64URL accepts padded and unpadded base64url, falling back to the
// standard alphabet.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
