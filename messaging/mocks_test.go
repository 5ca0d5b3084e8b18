package messaging

import (
	"context"
	"time"

	"github.com/glimte/streamgen/contracts"
	"github.com/stretchr/testify/mock"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Publish(ctx context.Context, stream string, envelope *contracts.Envelope) error {
	args := m.Called(ctx, stream, envelope)
	return args.Error(0)
}

func (m *mockTransport) DeleteStream(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockTransport) DeclareStream(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockTransport) InspectStream(ctx context.Context, name string) (StreamInfo, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(StreamInfo), args.Error(1)
}

func (m *mockTransport) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObservePublish(stream string, duration time.Duration, err error) {
	m.Called(stream, err)
}
