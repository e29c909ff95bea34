package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketscout/internal/cache"
	"marketscout/internal/models"
	"marketscout/internal/notifications"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateAlert(ctx context.Context, userID int64, message string) (*models.Alert, error) {
	args := m.Called(userID, message)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel, message string) error {
	return m.Called(channel, message).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	return m.Called(n).Error(0)
}

var (
	alice = models.User{ID: 1, Username: "alice", Email: "alice@example.com"}
	at    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func TestDispatch(t *testing.T) {
	store := &mockStore{}
	store.On("CreateAlert", int64(1), "first").Return(&models.Alert{ID: 10, UserID: 1, Message: "first", CreatedAt: at}, nil)
	store.On("CreateAlert", int64(1), "second").Return(&models.Alert{ID: 11, UserID: 1, Message: "second", CreatedAt: at}, nil)

	pub := &mockPublisher{}
	pub.On("Publish", cache.AlertsChannel, mock.Anything).Return(errors.New("redis down"))

	notifier := &mockNotifier{}
	notifier.On("Notify", mock.MatchedBy(func(n notifications.Notification) bool {
		return n.Email == "alice@example.com" && n.Username == "alice"
	})).Return(nil)

	alerts, err := NewDispatcher(store, pub, notifier, "api").Dispatch(context.Background(), alice, []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, int64(10), alerts[0].ID)
	assert.Equal(t, "second", alerts[1].Message)

	pub.AssertNumberOfCalls(t, "Publish", 2)
	notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestDispatchPublishesDecodableEvents(t *testing.T) {
	store := &mockStore{}
	store.On("CreateAlert", int64(1), "hello").Return(&models.Alert{ID: 3, UserID: 1, Message: "hello", CreatedAt: at}, nil)

	var payload string
	pub := &mockPublisher{}
	pub.On("Publish", cache.AlertsChannel, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.String(1)
	}).Return(nil)

	_, err := NewDispatcher(store, pub, nil, "api").Dispatch(context.Background(), alice, []string{"hello"})
	require.NoError(t, err)

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.UserID)
	assert.Equal(t, "hello", ev.Alert.Message)
	assert.True(t, at.Equal(ev.Alert.CreatedAt))
}

func TestDispatchStopsOnStoreFailure(t *testing.T) {
	store := &mockStore{}
	store.On("CreateAlert", int64(1), "first").Return(nil, errors.New("connection reset"))

	alerts, err := NewDispatcher(store, nil, nil, "worker").Dispatch(context.Background(), alice, []string{"first", "second"})
	assert.Error(t, err)
	assert.Empty(t, alerts)
	store.AssertNumberOfCalls(t, "CreateAlert", 1)
}

func TestDispatchNothing(t *testing.T) {
	alerts, err := NewDispatcher(&mockStore{}, nil, nil, "api").Dispatch(context.Background(), alice, nil)
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}
