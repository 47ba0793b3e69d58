package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, "tf")
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), Event{Type: TaskCompleted, UserID: 2, TaskID: 9, At: at}))
	require.Len(t, fc.subjects, 1)
	assert.Equal(t, "tf.task.completed", fc.subjects[0])

	var got Event
	require.NoError(t, json.Unmarshal(fc.payloads[0], &got))
	assert.Equal(t, TaskCompleted, got.Type)
	assert.Equal(t, uint(9), got.TaskID)
	assert.True(t, at.Equal(got.At))

	require.NoError(t, p.Close())
	assert.True(t, fc.drained)
}

func TestNATSPublisher_DefaultPrefixAndErrors(t *testing.T) {
	fc := &fakeConn{err: errors.New("connection closed")}
	p := newNATSPublisher(fc, "")

	assert.Equal(t, "taskflow.user.deleted", p.Subject(UserDeleted))
	err := p.Publish(context.Background(), Event{Type: UserDeleted, UserID: 1})
	assert.ErrorContains(t, err, "publish user.deleted")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: TaskCreated}))
	require.NoError(t, r.Publish(ctx, Event{Type: TaskDeleted}))

	assert.Equal(t, []Type{TaskCreated, TaskDeleted}, r.Types())
	assert.NoError(t, Noop{}.Publish(ctx, Event{Type: TaskCreated}))
}
