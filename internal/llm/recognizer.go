package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/spherical/glance/internal/domain"
)

// Recognizer reads text regions from an image with a vision model.
type Recognizer struct {
	client  *Client
	quality int
}

// NewRecognizer creates a recognizer that re-encodes frames at the given JPEG quality.
func NewRecognizer(client *Client, quality int) *Recognizer {
	if quality < 1 || quality > 100 {
		quality = 85
	}
	return &Recognizer{client: client, quality: quality}
}

type recognitionReply struct {
	Blocks []domain.RecognizedBlock `json:"blocks"`
}

// Recognize sends img to the model and parses the reported blocks.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, rotationDegrees int) ([]domain.RecognizedBlock, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, domain.ExtractionError("Failed to encode frame", err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	reply, err := r.client.complete(ctx,
		ContentPart{Type: "text", Text: buildRecognitionPrompt(rotationDegrees)},
		ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
	)
	if err != nil {
		return nil, err
	}

	return parseRecognition(reply)
}

// parseRecognition decodes the model reply, tolerating code fences around the JSON.
func parseRecognition(reply string) ([]domain.RecognizedBlock, error) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	if body == "" {
		return nil, domain.ExtractionError("empty recognition reply", nil)
	}

	var out recognitionReply
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, domain.ExtractionError("malformed recognition reply", err)
	}

	blocks := out.Blocks[:0]
	for _, b := range out.Blocks {
		if len(b.Lines) > 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func buildRecognitionPrompt(rotationDegrees int) string {
	return fmt.Sprintf(`Read every piece of printed or handwritten text in this photo.
The camera is mounted rotated by %d degrees clockwise; read the text upright.

Group text into blocks the way it is laid out (a sign, a paragraph, a label).
For every block and every line report "top": the distance in pixels from the
top edge of the image as delivered to you to the top of that block or line.

Reply with JSON only, no prose and no code fences:
{"blocks":[{"top":0,"lines":[{"text":"...","top":0}]}]}
Reply {"blocks":[]} if there is no text.`, rotationDegrees)
}
