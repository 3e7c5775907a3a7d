package streams

// Stream name constants
const (
	StreamIllustrationRequests = "illustration:requests"
	StreamIllustrationResults  = "illustration:results"
)

// Consumer group constants
const (
	GroupImageWorkers = "image-workers" // illustration sidecar side
	GroupGoWorkers    = "go-workers"    // pipeline side
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// IllustrationRequest asks the image-generation sidecar to illustrate a
// story's slides.
type IllustrationRequest struct {
	StoryID   string   `json:"story_id"`
	TopicSlug string   `json:"topic_slug"`
	Style     string   `json:"style"`
	Slides    []string `json:"slides"` // slide texts, in order
}

// IllustrationResult is the sidecar's reply.
type IllustrationResult struct {
	StoryID   string   `json:"story_id"`
	Status    string   `json:"status"`     // completed/failed
	ImageURLs []string `json:"image_urls"` // one per slide, in order
	Error     string   `json:"error"`      // error message if failed
}
