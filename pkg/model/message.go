package model

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// GroundingChunk is a citation fragment attached to a model answer
type GroundingChunk struct {
	Text         string `json:"text"`
	Title        string `json:"title,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

type ChatMessage struct {
	Role            Role             `json:"role"`
	Text            string           `json:"text"`
	GroundingChunks []GroundingChunk `json:"grounding_chunks,omitempty"`
}

func (m ChatMessage) Copy() ChatMessage {
	if m.GroundingChunks != nil {
		m.GroundingChunks = append([]GroundingChunk{}, m.GroundingChunks...)
	}
	return m
}

// QueryResult is the answer of a grounded query
type QueryResult struct {
	Text            string
	GroundingChunks []GroundingChunk
}
