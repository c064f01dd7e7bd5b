package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
)

func TestRedisPublisher_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	pub := notify.NewRedisPublisher(db, "leave-events")

	e := event(leave.EventRequestApproved)
	payload, err := notify.EncodeEvent(e)
	require.NoError(t, err)
	mock.ExpectPublish("leave-events", payload).SetVal(1)

	require.NoError(t, pub.Publish(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_PublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	pub := notify.NewRedisPublisher(db, "leave-events")

	e := event(leave.EventRequestCreated)
	payload, err := notify.EncodeEvent(e)
	require.NoError(t, err)
	mock.ExpectPublish("leave-events", payload).SetErr(errors.New("connection refused"))

	err = pub.Publish(context.Background(), e)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeEvent_Shape(t *testing.T) {
	payload, err := notify.EncodeEvent(event(leave.EventRequestCreated))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "request.created", decoded["type"])
	assert.Equal(t, "req-1", decoded["request_id"])
	assert.Equal(t, "emp", decoded["user_id"])
	assert.Equal(t, "2024-01-05", decoded["start_date"])
	assert.Equal(t, "3", decoded["days"])
}
