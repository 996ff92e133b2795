package mocks

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/promptfix/internal/llm"
)

// MockProvider is a mock implementation of llm.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Stream returns the configured sequence. Configure it with a []string of
// chunks and an optional trailing error, or with an iter.Seq2 directly.
func (m *MockProvider) Stream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	args := m.Called(ctx, req)
	if seq, ok := args.Get(0).(iter.Seq2[string, error]); ok {
		return seq
	}
	chunks, _ := args.Get(0).([]string)
	err := args.Error(1)
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}
