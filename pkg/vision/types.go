// Package vision implements the HTTP client for the remote vision
// description service: request construction, response classification,
// and retry handling.
package vision

// Item is one unit of work: an image payload with a caller-supplied
// identifier. IDs must be unique within one run.
type Item struct {
	ID      string
	Payload []byte
}

// Field is a requested output kind. Each field maps to exactly one
// service role string.
type Field string

const (
	// FieldAltText requests short alternative text for the image.
	FieldAltText Field = "alt_text"

	// FieldCaption requests a one-line caption.
	FieldCaption Field = "caption"

	// FieldLongDescription requests an extended description.
	FieldLongDescription Field = "long_description"
)

// AllFields lists every supported field in canonical order.
var AllFields = []Field{FieldAltText, FieldCaption, FieldLongDescription}

// fieldRoles maps each field to the role string the service expects.
var fieldRoles = map[Field]string{
	FieldAltText:         "alt-text-writer",
	FieldCaption:         "caption-writer",
	FieldLongDescription: "description-writer",
}

// Role returns the service role string for the field.
func (f Field) Role() string {
	return fieldRoles[f]
}

// Valid reports whether f is a member of the supported field set.
func (f Field) Valid() bool {
	_, ok := fieldRoles[f]
	return ok
}

// Description is one generated text with the backend that produced it.
type Description struct {
	Text    string `json:"text"`
	Backend string `json:"backend"`
}

// AssetResult is one processed item as reported by the service. Name is
// service-assigned and not guaranteed to equal the submitted item ID.
type AssetResult struct {
	Name         string        `json:"name"`
	Descriptions []Description `json:"descriptions"`
}

// SubmitRequest is the wire form of one describe call for a chunk of items.
type SubmitRequest struct {
	// Items are base64-encoded image payloads, aligned with Names.
	Items []string `json:"items"`

	// Names are the caller-supplied item IDs, aligned with Items.
	Names []string `json:"names"`

	// Role selects the description kind on the service side.
	Role string `json:"role"`

	// Model is the backend model identifier.
	Model string `json:"model"`

	// Language is the output language code.
	Language string `json:"language"`

	// Prompt optionally overrides the role's default prompt.
	Prompt string `json:"prompt,omitempty"`
}

// serviceResponse covers every known shape of the submit and poll
// endpoint responses. Classification decides which shape applies.
type serviceResponse struct {
	Job     string        `json:"job"`
	Assets  []AssetResult `json:"assets"`
	Errors  []string      `json:"errors"`
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
}
