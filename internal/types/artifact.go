package types

// ProblemStatement is the normalized output of the extract stage.
type ProblemStatement struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Constraints *Constraints `json:"constraints,omitempty"`
	// RawResponse is the provider reply exactly as received, kept for debugging.
	RawResponse string `json:"raw_response,omitempty"`
}

type Constraints struct {
	InputFormat  string    `json:"input_format,omitempty"`
	OutputFormat string    `json:"output_format,omitempty"`
	Limits       []string  `json:"limits,omitempty"`
	Examples     []Example `json:"examples,omitempty"`
}

type Example struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Solution is the normalized output of the solve stage and the body of a debug revision.
type Solution struct {
	Language        string   `json:"language"`
	Code            string   `json:"code"`
	Explanation     string   `json:"explanation"`
	Thoughts        []string `json:"thoughts,omitempty"`
	TimeComplexity  string   `json:"time_complexity,omitempty"`
	SpaceComplexity string   `json:"space_complexity,omitempty"`
}

// DebugResult is a revised Solution plus what changed and which screenshots prompted it.
type DebugResult struct {
	Solution    Solution        `json:"solution"`
	Changes     string          `json:"changes"`
	Issues      []string        `json:"issues,omitempty"`
	Screenshots []ScreenshotRef `json:"screenshots"`
}
