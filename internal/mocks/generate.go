// Package mocks provides mock implementations for testing the vidforge job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/vidforge/vidforge/internal/core JobRepository

// Generate mock for WorkQueue interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=work_queue_mock.go github.com/vidforge/vidforge/internal/core WorkQueue

// Generate mock for FrameGenerator and VideoEncoder interfaces from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=pipeline_mock.go github.com/vidforge/vidforge/internal/core FrameGenerator,VideoEncoder
