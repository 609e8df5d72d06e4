package llm

// Role constants for prompt messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content is the tagged union carried by a prompt message: either a plain
// text string or an ordered list of parts for vision requests. Exactly one
// branch is set.
type Content struct {
	text  string
	parts []ContentPart
}

// TextContent builds a plain text content.
func TextContent(text string) Content {
	return Content{text: text}
}

// PartsContent builds a multi-part content.
func PartsContent(parts ...ContentPart) Content {
	return Content{parts: parts}
}

// IsParts reports whether the content carries parts rather than plain text.
func (c Content) IsParts() bool {
	return c.parts != nil
}

// Text returns the plain-text branch.
func (c Content) Text() string {
	return c.text
}

// Parts returns the parts branch.
func (c Content) Parts() []ContentPart {
	return c.parts
}

// ContentPartType discriminates content parts.
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image_url"
)

// ContentPart is one element of a multi-part content: a text fragment or a
// self-contained embedded image (data URL).
type ContentPart struct {
	Type ContentPartType
	// Text is set for ContentPartText.
	Text string
	// ImageURL is set for ContentPartImage. It carries the full
	// "data:image/...;base64,..." payload, never a remote reference.
	ImageURL string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// ImagePart builds an embedded image content part from a data URL.
func ImagePart(dataURL string) ContentPart {
	return ContentPart{Type: ContentPartImage, ImageURL: dataURL}
}

// PromptMessage is one entry of the outbound context window.
type PromptMessage struct {
	Role    string
	Content Content
}
