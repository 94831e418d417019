package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical/glance/internal/domain"
)

// Translator translates text into a fixed target language.
type Translator struct {
	client     *Client
	targetLang string
}

// NewTranslator creates a translator for targetLang (ISO 639-1 code or language name).
func NewTranslator(client *Client, targetLang string) *Translator {
	return &Translator{client: client, targetLang: targetLang}
}

// TargetLang returns the language text is translated into.
func (t *Translator) TargetLang() string {
	return t.targetLang
}

// Translate returns the translation of text, keeping its line structure.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	reply, err := t.client.complete(ctx, ContentPart{Type: "text", Text: buildTranslationPrompt(text, t.targetLang)})
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", domain.APIError("empty translation reply", nil)
	}
	return reply, nil
}

func buildTranslationPrompt(text, targetLang string) string {
	return fmt.Sprintf(`Translate the text between the markers into %s.
Keep the same line breaks. Reply with the translation only.

<<<
%s
>>>`, targetLang, text)
}
