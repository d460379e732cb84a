package backend

// UploadResponse is returned by POST /api/upload
type UploadResponse struct {
	FilePath string `json:"filePath"`
}

// BulkSearchRequest starts a bulk course search over an uploaded CSV
type BulkSearchRequest struct {
	InputCSV          string `json:"input_csv"`
	OutputCSV         string `json:"output_csv"`
	ChunkSize         int    `json:"chunk_size"`
	KeyColumn         string `json:"key_column"`
	RequireReasoning  bool   `json:"require_reasoning"`
	InputTextTemplate string `json:"input_text_template"`
}

// AddUpdateRequest adds or updates the courses listed in a CSV
type AddUpdateRequest struct {
	CSVPath string `json:"csv_path"`
}

// RemoveRequest deletes the courses whose column_name values appear in a CSV
type RemoveRequest struct {
	CSVPath    string `json:"csv_path"`
	ColumnName string `json:"column_name"`
}

// TaskResponse is returned by every job-start endpoint
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Code   int    `json:"code"`
	Error  string `json:"error"`
}

// TaskStatus is returned by GET /task_status/{task_id}
type TaskStatus struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Code     int    `json:"code"`
	Error    string `json:"error"`
}

// SearchRequest is the body of POST /course_search
type SearchRequest struct {
	Query            string   `json:"query"`
	NumCourses       int      `json:"num_courses"`
	Languages        []string `json:"languages"`
	RequireReasoning bool     `json:"require_reasoning"`
}

// SearchResult is one scored course
type SearchResult struct {
	Course    map[string]any `json:"course"`
	Score     float64        `json:"score"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// SearchResponse is returned by POST /course_search
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Code    int            `json:"code"`
}
