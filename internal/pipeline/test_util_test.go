package pipeline

import (
	"encoding/json"

	"snapsolve/internal/capture"
	"snapsolve/internal/types"
)

func captureImage(data []byte) capture.Image {
	return capture.Image{MIMEType: "image/png", Data: data}
}

func refIndexes(refs []types.ScreenshotRef) []int {
	out := make([]int, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Index)
	}
	return out
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}
