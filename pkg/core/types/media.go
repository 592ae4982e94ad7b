package types

// MediaKind is the kind of binary media a MediaRef points to.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// MediaRef is an addressable handle to generated or captured media.
// Locator is either a self-contained data URI or a URL.
type MediaRef struct {
	Kind     MediaKind `json:"kind"`
	Locator  string    `json:"locator"`
	Prompt   string    `json:"prompt,omitempty"`
	MIMEType string    `json:"mime_type,omitempty"`
}
