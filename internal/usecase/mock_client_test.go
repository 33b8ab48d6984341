package usecase_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/misperer/internal/domain"
)

// MockMISPClient is a mock implementation of the MISPClient interface.
type MockMISPClient struct {
	mock.Mock
}

func raw(args mock.Arguments) (json.RawMessage, error) {
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	switch v := result.(type) {
	case string:
		return json.RawMessage(v), args.Error(1)
	default:
		return result.(json.RawMessage), args.Error(1)
	}
}

func (m *MockMISPClient) Search(ctx context.Context, query domain.SearchQuery) (json.RawMessage, error) {
	return raw(m.Called(ctx, query))
}

func (m *MockMISPClient) BuildComplexQuery(or, and, not []string) domain.ComplexQuery {
	return domain.ComplexQuery{Or: or, And: and, Not: not}
}

func (m *MockMISPClient) GetEvent(ctx context.Context, ref string, metadataOnly bool) (json.RawMessage, error) {
	return raw(m.Called(ctx, ref, metadataOnly))
}

func (m *MockMISPClient) AddEvent(ctx context.Context, event domain.Event) (json.RawMessage, error) {
	return raw(m.Called(ctx, event))
}

func (m *MockMISPClient) UpdateEvent(ctx context.Context, event domain.Event) (json.RawMessage, error) {
	return raw(m.Called(ctx, event))
}

func (m *MockMISPClient) PublishEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return raw(m.Called(ctx, eventID))
}

func (m *MockMISPClient) DeleteEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return raw(m.Called(ctx, eventID))
}

func (m *MockMISPClient) DeleteAttribute(ctx context.Context, attributeID string, hard bool) (json.RawMessage, error) {
	return raw(m.Called(ctx, attributeID, hard))
}

func (m *MockMISPClient) DeleteObject(ctx context.Context, objectID string) (json.RawMessage, error) {
	return raw(m.Called(ctx, objectID))
}

func (m *MockMISPClient) DeleteTag(ctx context.Context, tagID string) (json.RawMessage, error) {
	return raw(m.Called(ctx, tagID))
}

func (m *MockMISPClient) Organisations(ctx context.Context) (json.RawMessage, error) {
	return raw(m.Called(ctx))
}

func (m *MockMISPClient) Logs(ctx context.Context, query domain.LogQuery) (json.RawMessage, error) {
	return raw(m.Called(ctx, query))
}

func (m *MockMISPClient) Users(ctx context.Context) (json.RawMessage, error) {
	return raw(m.Called(ctx))
}

func (m *MockMISPClient) AddUser(ctx context.Context, user domain.User) (json.RawMessage, error) {
	return raw(m.Called(ctx, user))
}

func (m *MockMISPClient) EditUser(ctx context.Context, userID string, changes domain.User) (json.RawMessage, error) {
	return raw(m.Called(ctx, userID, changes))
}

func (m *MockMISPClient) DeleteUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return raw(m.Called(ctx, userID))
}

func (m *MockMISPClient) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
