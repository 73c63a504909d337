// Package mocks provides test doubles for the samgov client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/zgr-ai/sow-cli/internal/model"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetOpportunity provides a mock function with given fields: ctx, noticeID
func (_m *MockClient) GetOpportunity(ctx context.Context, noticeID string) (*model.NoticeMetadata, error) {
	ret := _m.Called(ctx, noticeID)

	if len(ret) == 0 {
		panic("no return value specified for GetOpportunity")
	}

	var r0 *model.NoticeMetadata
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.NoticeMetadata, error)); ok {
		return rf(ctx, noticeID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.NoticeMetadata); ok {
		r0 = rf(ctx, noticeID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.NoticeMetadata)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, noticeID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DownloadAttachment provides a mock function with given fields: ctx, ref, destDir
func (_m *MockClient) DownloadAttachment(ctx context.Context, ref model.AttachmentRef, destDir string) (string, error) {
	ret := _m.Called(ctx, ref, destDir)

	if len(ret) == 0 {
		panic("no return value specified for DownloadAttachment")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.AttachmentRef, string) (string, error)); ok {
		return rf(ctx, ref, destDir)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.AttachmentRef, string) string); ok {
		r0 = rf(ctx, ref, destDir)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.AttachmentRef, string) error); ok {
		r1 = rf(ctx, ref, destDir)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
