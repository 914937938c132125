package types

import "time"

// Screenshot is one captured image within a session. Index is assigned by the
// pipeline in capture order and never reused.
type Screenshot struct {
	Index      int       `json:"index"`
	CapturedAt time.Time `json:"captured_at"`
	MIMEType   string    `json:"mime_type"`
	Data       []byte    `json:"data"`
}

// Ref returns the lightweight reference kept after the image is handed to a provider.
func (s Screenshot) Ref() ScreenshotRef {
	return ScreenshotRef{Index: s.Index, CapturedAt: s.CapturedAt}
}

// ScreenshotRef points back at a Screenshot without holding its payload.
type ScreenshotRef struct {
	Index      int       `json:"index"`
	CapturedAt time.Time `json:"captured_at"`
}

func RefsOf(shots []Screenshot) []ScreenshotRef {
	out := make([]ScreenshotRef, 0, len(shots))
	for _, s := range shots {
		out = append(out, s.Ref())
	}
	return out
}
