package jsonutil

import (
	"errors"
	"testing"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence without info", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", in: "Here you go:\n{\"a\":{\"b\":2}}\nHope it helps", want: `{"a":{"b":2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractObject(tc.in)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestExtractObject_NoObject(t *testing.T) {
	for _, in := range []string{"", "   ", "no json here", "{not json}"} {
		if _, err := ExtractObject(in); !errors.Is(err, ErrNoObject) {
			t.Fatalf("input %q: expected ErrNoObject, got %v", in, err)
		}
	}
}

func TestUnmarshalFlex_QuotedDocument(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := UnmarshalFlex([]byte(`"{\"title\":\"Sum\"}"`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Title != "Sum" {
		t.Fatalf("title: got=%q", out.Title)
	}
}

func TestMarshalNoEscape(t *testing.T) {
	b, err := MarshalNoEscape(map[string]string{"code": "a < b && c > d"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"code":"a < b && c > d"}` {
		t.Fatalf("unexpected output: %s", b)
	}
}
