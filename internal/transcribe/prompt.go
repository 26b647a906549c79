package transcribe

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
)

// BuildPrompt returns the instruction sent alongside the audio. The output
// depends only on its arguments.
func BuildPrompt(tonePrompt, language string) string {
	var b strings.Builder
	b.WriteString("Listen to this audio recording.\n")
	b.WriteString("The speaker is talking about their day.\n")
	b.WriteString("Please write a diary entry based on this in " + language + ".\n")
	b.WriteString("\n")
	b.WriteString("Style Guidelines:\n")
	b.WriteString(strings.TrimSpace(tonePrompt) + "\n")
	b.WriteString("\n")
	b.WriteString("CRITICAL OUTPUT FORMAT:\n")
	b.WriteString("You MUST return ONLY a valid JSON object. Do not include markdown formatting.\n")
	b.WriteString("Structure:\n")
	b.WriteString("{\n")
	b.WriteString(`  "title": "A concise, meaningful title in ` + language + `",` + "\n")
	b.WriteString(`  "content": "The diary body text"` + "\n")
	b.WriteString("}\n")
	return b.String()
}

var mimeTypes = map[string]string{
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".3gp":  "audio/3gpp",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
}

// MimeType guesses the audio MIME type from the file extension,
// defaulting to audio/mp4.
func MimeType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "audio/mp4"
}

// SupportedExtension reports whether path has a known audio extension.
func SupportedExtension(path string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

var jsonFence = regexp.MustCompile("(?i)```json")

// ParseResult extracts a diary entry from model output. Markdown fences are
// stripped; if the remainder is not JSON the outermost {...} is tried.
func ParseResult(text string) (*Result, error) {
	cleaned := jsonFence.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "```", ""))

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return nil, &ParseError{Raw: text, Err: ErrMalformedJSON}
		}
		fields = nil
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err != nil {
			return nil, &ParseError{Raw: text, Err: ErrMalformedJSON}
		}
	}
	if fields == nil {
		return nil, &ParseError{Raw: text, Err: ErrMalformedJSON}
	}

	title, _ := fields["title"].(string)
	content, _ := fields["content"].(string)
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, &ParseError{Raw: text, Err: ErrIncompleteResult}
	}
	return &Result{Title: title, Content: content}, nil
}
