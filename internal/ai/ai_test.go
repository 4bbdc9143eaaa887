package ai

import (
	"context"
	"sync"
	"testing"

	"github.com/chatlens/chatlens-backend/internal/platform/logger"
	"github.com/chatlens/chatlens-backend/internal/platform/openai"
)

var (
	testLogOnce sync.Once
	testLog     *logger.Logger
	testLogErr  error
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	testLogOnce.Do(func() {
		testLog, testLogErr = logger.New("test")
	})
	if testLogErr != nil {
		t.Fatalf("failed to init logger: %v", testLogErr)
	}
	return testLog
}

// fakeProvider is a canned Provider for gateway tests.
type fakeProvider struct {
	name string
	dims int

	embedErr    error
	completion  string
	completeErr error

	embedCalls    int
	completeCalls int
	lastInputs    []string
}

func (f *fakeProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.embedCalls++
	f.lastInputs = inputs
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		vec := make([]float32, f.dims)
		if f.dims > 0 {
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeProvider) Complete(ctx context.Context, system, user string, opts openai.CompletionOptions) (string, error) {
	f.completeCalls++
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completion, nil
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) Model() string      { return f.name + "-model" }
func (f *fakeProvider) EmbedModel() string { return f.name + "-embed" }
