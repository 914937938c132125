package llmclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"snapsolve/internal/types"
	"snapsolve/internal/util/jsonutil"
)

// stagePrompt is the vendor-neutral request an adapter translates into its wire format.
type stagePrompt struct {
	System string
	Text   string
	Images []types.Screenshot
}

const extractSystemPrompt = `You read screenshots of a programming problem and transcribe it.
Reply with a single JSON object and nothing else:
{"title": string, "description": string, "input_format": string, "output_format": string,
 "constraints": [string], "examples": [{"input": string, "output": string}]}
Copy the statement faithfully. Use empty strings or empty arrays for parts that are not visible.`

const solveSystemPrompt = `You solve programming problems.
Reply with a single JSON object and nothing else:
{"language": string, "code": string, "explanation": string, "thoughts": [string],
 "time_complexity": string, "space_complexity": string}
"code" must be a complete, runnable solution in the requested language.`

const debugSystemPrompt = `You debug a solution to a programming problem. The screenshots show
the current code, its output, failing tests or error messages.
Reply with a single JSON object and nothing else:
{"language": string, "code": string, "changes": string, "issues": [string], "explanation": string,
 "thoughts": [string], "time_complexity": string, "space_complexity": string}
"code" must be the complete revised solution. Keep the same language unless the screenshots ask for another.`

func extractPrompt(shots []types.Screenshot) stagePrompt {
	return stagePrompt{
		System: extractSystemPrompt,
		Text:   fmt.Sprintf("Extract the problem shown in the %d attached screenshot(s).", len(shots)),
		Images: shots,
	}
}

func solvePrompt(problem types.ProblemStatement, language string) stagePrompt {
	in := map[string]any{
		"language": language,
		"problem":  problemInput(problem),
	}
	return stagePrompt{
		System: solveSystemPrompt,
		Text:   "Solve this problem.\n\n[INPUT JSON]\n" + mustIndent(in),
	}
}

func debugPrompt(problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) stagePrompt {
	in := map[string]any{
		"problem": problemInput(problem),
		"current_solution": map[string]any{
			"language": solution.Language,
			"code":     solution.Code,
		},
	}
	return stagePrompt{
		System: debugSystemPrompt,
		Text: fmt.Sprintf("Revise the current solution using the %d attached screenshot(s).\n\n[INPUT JSON]\n%s",
			len(shots), mustIndent(in)),
		Images: shots,
	}
}

// problemInput drops RawResponse so vendor text never feeds back into prompts.
func problemInput(p types.ProblemStatement) map[string]any {
	out := map[string]any{
		"title":       p.Title,
		"description": p.Description,
	}
	if p.Constraints != nil {
		out["constraints"] = p.Constraints
	}
	return out
}

func mustIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

type problemReply struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	InputFormat  string          `json:"input_format"`
	OutputFormat string          `json:"output_format"`
	Constraints  []string        `json:"constraints"`
	Examples     []types.Example `json:"examples"`
}

type solutionReply struct {
	Language        string   `json:"language"`
	Code            string   `json:"code"`
	Changes         string   `json:"changes"`
	Issues          []string `json:"issues"`
	Explanation     string   `json:"explanation"`
	Thoughts        []string `json:"thoughts"`
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
}

func decodeReply(provider, text string, v any) error {
	obj, err := jsonutil.ExtractObject(text)
	if err != nil {
		return Malformed(provider, "reply is not JSON: %w", err)
	}
	if err := jsonutil.UnmarshalFlex(obj, v); err != nil {
		return Malformed(provider, "reply does not match schema: %w", err)
	}
	return nil
}

func decodeProblem(provider, text string) (types.ProblemStatement, error) {
	var r problemReply
	if err := decodeReply(provider, text, &r); err != nil {
		return types.ProblemStatement{}, err
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return types.ProblemStatement{}, Malformed(provider, "reply has no problem description")
	}
	if r.Title == "" {
		r.Title = firstLine(r.Description)
	}
	out := types.ProblemStatement{
		Title:       r.Title,
		Description: r.Description,
		RawResponse: text,
	}
	c := types.Constraints{
		InputFormat:  strings.TrimSpace(r.InputFormat),
		OutputFormat: strings.TrimSpace(r.OutputFormat),
		Limits:       nonEmpty(r.Constraints),
		Examples:     r.Examples,
	}
	if c.InputFormat != "" || c.OutputFormat != "" || len(c.Limits) > 0 || len(c.Examples) > 0 {
		out.Constraints = &c
	}
	return out, nil
}

func decodeSolution(provider, text, language string) (types.Solution, error) {
	var r solutionReply
	if err := decodeReply(provider, text, &r); err != nil {
		return types.Solution{}, err
	}
	if strings.TrimSpace(r.Code) == "" {
		return types.Solution{}, Malformed(provider, "reply has no code")
	}
	return r.solution(language), nil
}

func decodeDebug(provider, text string, prev types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	var r solutionReply
	if err := decodeReply(provider, text, &r); err != nil {
		return types.DebugResult{}, err
	}
	if strings.TrimSpace(r.Code) == "" {
		return types.DebugResult{}, Malformed(provider, "reply has no revised code")
	}
	changes := strings.TrimSpace(r.Changes)
	if changes == "" {
		changes = strings.TrimSpace(r.Explanation)
	}
	return types.DebugResult{
		Solution:    r.solution(prev.Language),
		Changes:     changes,
		Issues:      nonEmpty(r.Issues),
		Screenshots: types.RefsOf(shots),
	}, nil
}

// solution fills the language from fallback when the model omits it.
func (r solutionReply) solution(fallback string) types.Solution {
	lang := strings.ToLower(strings.TrimSpace(r.Language))
	if lang == "" {
		lang = fallback
	}
	return types.Solution{
		Language:        lang,
		Code:            jsonutil.StripCodeFence(r.Code),
		Explanation:     strings.TrimSpace(r.Explanation),
		Thoughts:        nonEmpty(r.Thoughts),
		TimeComplexity:  strings.TrimSpace(r.TimeComplexity),
		SpaceComplexity: strings.TrimSpace(r.SpaceComplexity),
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.TrimSpace(line)
	const maxTitle = 80
	if len(line) <= maxTitle {
		return line
	}
	cut := maxTitle
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

// validateScreenshots enforces the non-empty precondition shared by extract and debug.
func validateScreenshots(op string, shots []types.Screenshot) error {
	if len(shots) == 0 {
		return InvalidInput(op + " requires at least one screenshot")
	}
	for _, s := range shots {
		if len(s.Data) == 0 {
			return InvalidInput(fmt.Sprintf("%s: screenshot %d is empty", op, s.Index))
		}
	}
	return nil
}

func mimeOrDefault(s types.Screenshot) string {
	if m := strings.TrimSpace(s.MIMEType); m != "" {
		return m
	}
	return "image/png"
}
