package domain

import "strings"

// ImageInput is a picked image, either inline bytes or a reference the client can open.
type ImageInput struct {
	Bytes    []byte `json:"-"`
	URI      string `json:"uri,omitempty"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// HasContent reports whether the image carries bytes or a reference.
func (i *ImageInput) HasContent() bool {
	return i != nil && (len(i.Bytes) > 0 || strings.TrimSpace(i.URI) != "")
}

// GenerationInput is the user's selection. Exactly one variant must be populated.
type GenerationInput struct {
	Image      *ImageInput `json:"image,omitempty"`
	TextPrompt string      `json:"textPrompt,omitempty"`
	ImageURL   string      `json:"imageUrl,omitempty"`
}

// Populated returns how many input variants are set.
func (in GenerationInput) Populated() int {
	n := 0
	if in.Image.HasContent() {
		n++
	}
	if strings.TrimSpace(in.TextPrompt) != "" {
		n++
	}
	if strings.TrimSpace(in.ImageURL) != "" {
		n++
	}
	return n
}

// IsTextPrompt reports whether the selection is a text prompt only.
func (in GenerationInput) IsTextPrompt() bool {
	return in.Populated() == 1 && strings.TrimSpace(in.TextPrompt) != ""
}

// GenerationRequest is one recipe generation call: an input plus the credentials to use.
type GenerationRequest struct {
	Input    GenerationInput
	Provider string
	APIKey   string
	Model    string
	Language string
	BaseURL  string
}

// ImageRequest asks the backend to render an image from a text prompt.
type ImageRequest struct {
	Prompt   string
	Provider string
	APIKey   string
	Size     string
	BaseURL  string
}

// KeyValidation is the backend's verdict on an API key.
// A rejected key is a normal result with Valid=false, not an error.
type KeyValidation struct {
	Valid  bool              `json:"valid"`
	Models []ModelDescriptor `json:"models"`
	Error  string            `json:"error,omitempty"`
}
