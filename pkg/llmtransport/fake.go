package llmtransport

import (
	"context"
	"sync"
)

// FakeClient is an in-memory Client used by pipeline tests, mirroring the
// teacher's pattern of a hand-rolled test double standing in for the real
// LLMClient.
type FakeClient struct {
	mu        sync.Mutex
	Ready     bool
	Responses []CompletionResponse
	Err       error
	Calls     []CompletionRequest
}

// NewFakeClient returns a ready fake that replies with responses in order,
// repeating the last one once exhausted.
func NewFakeClient(responses ...CompletionResponse) *FakeClient {
	return &FakeClient{Ready: true, Responses: responses}
}

func (f *FakeClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, req)
	if f.Err != nil {
		return CompletionResponse{}, f.Err
	}
	if len(f.Responses) == 0 {
		return CompletionResponse{}, ErrUnavailable(context.DeadlineExceeded)
	}
	idx := len(f.Calls) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

func (f *FakeClient) IsReady(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ready
}
