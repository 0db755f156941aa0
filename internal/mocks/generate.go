// Package mocks provides mock implementations for testing the edumanage auth system.
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
//	mockRepo := mocks.NewMockIdentityRepository(ctrl)
//	mockRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(rec, nil)
package mocks

// Generate mock for IdentityRepository interface from internal/core package.
// This creates MockIdentityRepository with methods for all IdentityRepository interface methods:
// Create, GetByID, GetByEmail, UpdatePassword, SetDisabled, BumpTokenVersion
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_repository_mock.go github.com/edumanage/edumanage/internal/core IdentityRepository
