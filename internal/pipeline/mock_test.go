package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/auto-oracle/internal/model"
)

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, documentPath string) ([]model.Question, error) {
	args := m.Called(ctx, documentPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Question), args.Error(1)
}

type mockAnswerer struct {
	mock.Mock
}

func (m *mockAnswerer) Answer(ctx context.Context, question, chatbotReference string) (string, error) {
	args := m.Called(ctx, question, chatbotReference)
	return args.String(0), args.Error(1)
}

type mockFiller struct {
	mock.Mock
}

func (m *mockFiller) FillDocument(ctx context.Context, docPath string, pairs []model.QAPair, outPath string) (string, error) {
	args := m.Called(ctx, docPath, pairs, outPath)
	return args.String(0), args.Error(1)
}
