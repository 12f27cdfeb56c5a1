package workflow

import (
	"context"
	"image"
	"sync"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// mockGenerator は ImageGenerator のテスト用モックなのだ。受け取ったリクエストを記録するのだ。
type mockGenerator struct {
	mu           sync.Mutex
	requests     []domain.GenerationRequest
	generateFunc func(call int, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

func (m *mockGenerator) Generate(_ context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := len(m.requests)
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(call, req)
	}
	// 既定では最後の画像と同じ寸法の画像を返すのだ
	last := req.Images[len(req.Images)-1]
	return &domain.GenerationResult{Image: image.NewRGBA(last.Bounds()), Success: true}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type describeCall struct {
	original, annotated image.Image
}

// mockDescriber は LocationDescriber のテスト用モックなのだ。
type mockDescriber struct {
	calls        []describeCall
	describeFunc func(original, annotated image.Image) (string, error)
}

func (m *mockDescriber) Describe(_ context.Context, original, annotated image.Image) (string, error) {
	m.calls = append(m.calls, describeCall{original: original, annotated: annotated})
	if m.describeFunc != nil {
		return m.describeFunc(original, annotated)
	}
	return "in the foreground, left of the sofa", nil
}

// mockVerifier は PlacementVerifier のテスト用モックなのだ。
type mockVerifier struct {
	reviews     []domain.Verification
	reviewFunc  func(in domain.Verification) (string, error)
	examineFunc func(call int, in domain.Verification, review string) (domain.Verdict, error)
	examined    int
}

func (m *mockVerifier) Review(_ context.Context, in domain.Verification) (string, error) {
	m.reviews = append(m.reviews, in)
	if m.reviewFunc != nil {
		return m.reviewFunc(in)
	}
	return "a chair is visible", nil
}

func (m *mockVerifier) Examine(_ context.Context, in domain.Verification, review string) (domain.Verdict, error) {
	m.examined++
	if m.examineFunc != nil {
		return m.examineFunc(m.examined, in, review)
	}
	return domain.Verdict{Passed: true, Feedback: "ok"}, nil
}
