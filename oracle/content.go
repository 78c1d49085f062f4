package oracle

import (
	"github.com/renqiu/gohomework/element"
	"github.com/renqiu/gohomework/llm"
)

// Content renders ordered elements into the multimodal parts both
// pipeline calls send: text elements become text parts, images become
// base64 data URLs.
func Content(elements []*element.Element) []llm.ContentPart {
	parts := make([]llm.ContentPart, 0, len(elements))
	for _, el := range elements {
		switch el.Kind {
		case element.Text:
			parts = append(parts, llm.TextPart(el.Content))
		case element.Image, element.PageImage:
			parts = append(parts, llm.ImagePart(el.Content))
		}
	}
	return parts
}
