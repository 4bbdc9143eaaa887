package ai

import (
	"context"
	"errors"
	"testing"
)

func TestCleanJSONResponse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  \n {\"a\": 1} \n", `{"a": 1}`},
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"unlabeled fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"noise prefix", `Here is the JSON: {"a": 1}`, `{"a": 1}`},
		{"prefix plus fence", "Here's the JSON: ```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"trailing prose", `{"a": 1} hope that helps!`, `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CleanJSONResponse(tc.in)
			if err != nil {
				t.Fatalf("CleanJSONResponse(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("CleanJSONResponse(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanJSONResponseNoObject(t *testing.T) {
	for _, in := range []string{"", "not json at all", "```\nplain text\n```", "}{"} {
		if _, err := CleanJSONResponse(in); !errors.Is(err, ErrMalformedStructuredResponse) {
			t.Fatalf("CleanJSONResponse(%q) err = %v, want ErrMalformedStructuredResponse", in, err)
		}
	}
}

func TestCompleterFallsBackToNextProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", completeErr: errors.New("timeout")}
	backup := &fakeProvider{name: "backup", completion: "from backup"}
	c, err := NewCompleter(testLogger(t), []Provider{primary, backup})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}

	text, err := c.Complete(context.Background(), "sys", "user", CompleteOptions{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "from backup" {
		t.Fatalf("text = %q, want the backup's answer", text)
	}
	if primary.completeCalls != 1 || backup.completeCalls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", primary.completeCalls, backup.completeCalls)
	}
}

func TestCompleterAllProvidersFail(t *testing.T) {
	c, err := NewCompleter(testLogger(t), []Provider{
		&fakeProvider{name: "a", completeErr: errors.New("down")},
		&fakeProvider{name: "b", completeErr: errors.New("also down")},
	})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}

	_, err = c.Complete(context.Background(), "sys", "user", CompleteOptions{})
	if !errors.Is(err, ErrCompletionUnavailable) {
		t.Fatalf("err = %v, want ErrCompletionUnavailable", err)
	}
}

func TestCompleterMalformedAnswerDoesNotBurnChain(t *testing.T) {
	primary := &fakeProvider{name: "primary", completion: "I cannot produce that."}
	backup := &fakeProvider{name: "backup", completion: `{"a": 1}`}
	c, err := NewCompleter(testLogger(t), []Provider{primary, backup})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}

	_, err = c.Complete(context.Background(), "sys", "user", CompleteOptions{ExpectJSON: true})
	if !errors.Is(err, ErrMalformedStructuredResponse) {
		t.Fatalf("err = %v, want ErrMalformedStructuredResponse", err)
	}
	if backup.completeCalls != 0 {
		t.Fatalf("backup should not be tried when the primary answered with bad data")
	}
}

func TestCompleteJSONDecodes(t *testing.T) {
	p := &fakeProvider{name: "p", completion: "```json\n{\"summary\": \"hi\", \"key_topics\": [\"x\"]}\n```"}
	c, err := NewCompleter(testLogger(t), []Provider{p})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}

	var out struct {
		Summary   string   `json:"summary"`
		KeyTopics []string `json:"key_topics"`
	}
	if err := c.CompleteJSON(context.Background(), "sys", "user", CompleteOptions{}, &out); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out.Summary != "hi" || len(out.KeyTopics) != 1 {
		t.Fatalf("decoded %+v", out)
	}
}

func TestCompleteJSONWrongShape(t *testing.T) {
	p := &fakeProvider{name: "p", completion: `{"summary": 42}`}
	c, err := NewCompleter(testLogger(t), []Provider{p})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}

	var out struct {
		Summary string `json:"summary"`
	}
	err = c.CompleteJSON(context.Background(), "sys", "user", CompleteOptions{}, &out)
	if !errors.Is(err, ErrMalformedStructuredResponse) {
		t.Fatalf("err = %v, want ErrMalformedStructuredResponse", err)
	}
}
