package classify

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the number of characters of document text sent to the model.
const MaxTextLength = 8000

// TruncateText returns at most max runes of text. Truncation is silent.
func TruncateText(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}

func systemPrompt() string {
	return fmt.Sprintf(`You sort scanned business documents into folders.

You receive the text of one document, extracted by OCR, and a list of folder
categories. Pick the single category that best describes the document.

Rules:
- Answer with the category name exactly as listed, including case.
- If no category fits, answer %q.
- confidence is a number between 0 and 1 (0.9+ only for unambiguous documents).
- reasoning is one or two sentences citing the text that decided it.

Return ONLY a JSON object, no text before or after:
{"category": "<name>", "confidence": <number>, "reasoning": "<text>"}`, Uncategorized)
}

func buildPrompt(text string, categories []Category) string {
	var prompt strings.Builder

	prompt.WriteString("Categories:\n")
	for _, c := range categories {
		prompt.WriteString("- ")
		prompt.WriteString(c.Name)
		prompt.WriteString("\n")
	}
	prompt.WriteString("- ")
	prompt.WriteString(Uncategorized)
	prompt.WriteString("\n\nDocument text:\n")
	prompt.WriteString(TruncateText(text, MaxTextLength))

	return prompt.String()
}
