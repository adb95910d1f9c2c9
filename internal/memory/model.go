package memory

import "errors"

var (
	// ErrLengthMismatch is returned by Add when texts and payloads differ in length.
	ErrLengthMismatch = errors.New("texts and payloads length mismatch")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Payload is the metadata stored next to each vector.
// The JSON keys match the on-disk metadata format.
type Payload struct {
	Role            Role   `json:"type"`
	Text            string `json:"text"`
	SourceMessageID *int64 `json:"message_id"`
}

// SearchResult is one nearest-neighbour hit. Rank 0 is the best match.
type SearchResult struct {
	Payload    Payload `json:"payload"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	SequenceID int     `json:"sequence_id"`
}

// Snapshot is the persisted state of one user's index.
// Vectors[i] and Payloads[i] belong to sequence id i.
type Snapshot struct {
	Dim      int
	Vectors  [][]float32
	Payloads []Payload
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Payloads)
}

// Stats summarizes one user's index.
type Stats struct {
	Entries int `json:"entries"`
	Dim     int `json:"dim"`
}
