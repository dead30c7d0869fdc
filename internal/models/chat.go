package models

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type ChatMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// CompletionMessage is one message in the generation service's wire format.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the proxied chat body.
type CompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []CompletionMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type CompletionResponse struct {
	Message string `json:"message"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
	Tab  string `json:"tab"`
}

type SelectPatientRequest struct {
	PatientID string `json:"patient_id"`
}

// TurnResult describes the outcome of one chat submission. For uploads,
// Extraction is the extraction status and Method the path that produced text.
type TurnResult struct {
	State      string             `json:"state,omitempty"`
	Reply      string             `json:"reply,omitempty"`
	Values     map[string]float64 `json:"values,omitempty"`
	LabEntryID string             `json:"lab_entry_id,omitempty"`
	Findings   []string           `json:"findings,omitempty"`
	Filename   string             `json:"filename,omitempty"`
	Extraction string             `json:"extraction,omitempty"`
	Method     string             `json:"method,omitempty"`
	FileKey    string             `json:"file_key,omitempty"`
}

// UploadedFile is one file from a multipart upload, held in memory only.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
