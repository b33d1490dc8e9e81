package domain

// ChunkMetadata is stored alongside every chunk in the vector index.
type ChunkMetadata struct {
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
	Hash    string `json:"hash"`
}

// ChunkRecord is one stored chunk: text, embedding and metadata.
type ChunkRecord struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Vector   []float32     `json:"vector,omitempty"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMatch is a record returned by a similarity query.
type ChunkMatch struct {
	Record ChunkRecord
	Score  float64
}

// Document is a registered source: display name and content hash.
type Document struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// TaskType hints the embedding provider about the intended use of a vector.
type TaskType string

const (
	TaskSemanticSimilarity TaskType = "SEMANTIC_SIMILARITY"
	TaskRetrievalDocument  TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery     TaskType = "RETRIEVAL_QUERY"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskSemanticSimilarity, TaskRetrievalDocument, TaskRetrievalQuery:
		return true
	}
	return false
}

// IngestStatus reports what happened to a submitted document.
type IngestStatus string

const (
	StatusIngested  IngestStatus = "ingested"
	StatusDuplicate IngestStatus = "duplicate"
	StatusEmpty     IngestStatus = "empty"
)

// QAItem is one evaluation question with its reference answer.
type QAItem struct {
	Question    string `json:"question"`
	IdealAnswer string `json:"ideal_answer"`
}

// EvalRecord is one row of an evaluation run.
type EvalRecord struct {
	Question    string  `json:"question"`
	AIAnswer    string  `json:"ai_answer"`
	IdealAnswer string  `json:"ideal_answer"`
	Evaluation  string  `json:"evaluation"`
	Context     string  `json:"context"`
	Hash        string  `json:"hash"`
	Score       float64 `json:"score"`
}

// ChatTurn is one exchange of a conversation, used to refine follow-up questions.
type ChatTurn struct {
	Question string
	Answer   string
}
