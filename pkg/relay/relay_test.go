package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.Enqueue(Broadcast("a")))
	require.NoError(t, q.Enqueue(NotifyAdmins("b")))
	require.NoError(t, q.Enqueue(Broadcast("c")))

	a, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, Broadcast("a"), a)

	// Wrap around the ring
	require.NoError(t, q.Enqueue(Broadcast("d")))
	require.NoError(t, q.Enqueue(Broadcast("e")))
	assert.Equal(t, 4, q.Len())

	assert.Equal(t, []Action{NotifyAdmins("b"), Broadcast("c"), Broadcast("d"), Broadcast("e")}, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Enqueue(Broadcast("1")))
	require.NoError(t, q.Enqueue(Broadcast("2")))
	require.ErrorIs(t, q.Enqueue(Broadcast("3")), ErrQueueFull)
	assert.Equal(t, 2, q.Cap())
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue(2)
	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Nil(t, q.Drain())
	assert.Equal(t, 0, q.Clear())
}

func TestQueueConcurrent(t *testing.T) {
	q := NewQueue(10000)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				assert.NoError(t, q.Enqueue(Broadcast(fmt.Sprintf("%d-%d", p, i))))
			}
		}(p)
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		drained += len(q.Drain())
		select {
		case <-done:
			drained += len(q.Drain())
			assert.Equal(t, 2000, drained)
			return
		default:
		}
	}
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]bool
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[chatID] {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeUsers struct {
	users []*models.ChatUser
	err   error
}

func (f *fakeUsers) GetAll() ([]*models.ChatUser, error) {
	return f.users, f.err
}

func users(ids ...int64) *fakeUsers {
	f := &fakeUsers{}
	for _, id := range ids {
		f.users = append(f.users, &models.ChatUser{ChatID: id})
	}
	return f
}

func TestTickDeliversInOrder(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{}
	loop := NewLoop(LoopOptions{Queue: q, Sender: sender, Users: users(1)})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Broadcast(fmt.Sprintf("msg %d", i))))
	}

	assert.Equal(t, 5, loop.Tick(context.Background()))
	got := sender.messages()
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("msg %d", i), m.text)
	}

	// A second tick on an empty queue returns immediately
	assert.Equal(t, 0, loop.Tick(context.Background()))
	assert.Len(t, sender.messages(), 5)
}

func TestTickRoutesActions(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{}
	loop := NewLoop(LoopOptions{
		Queue:    q,
		Sender:   sender,
		Users:    users(10, 11),
		AdminIDs: []int64{99},
	})

	require.NoError(t, q.Enqueue(Broadcast("all")))
	require.NoError(t, q.Enqueue(NotifyAdmins("admins")))

	assert.Equal(t, 3, loop.Tick(context.Background()))
	assert.Equal(t, []sentMessage{
		{10, "all"},
		{11, "all"},
		{99, "admins"},
	}, sender.messages())
}

func TestTickContinuesAfterFailures(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{failOn: map[int64]bool{10: true}}
	loop := NewLoop(LoopOptions{Queue: q, Sender: sender, Users: users(10, 11), AdminIDs: []int64{10, 12}})

	require.NoError(t, q.Enqueue(Broadcast("one")))
	require.NoError(t, q.Enqueue(NotifyAdmins("two")))

	assert.Equal(t, 2, loop.Tick(context.Background()))
	assert.Equal(t, []sentMessage{{11, "one"}, {12, "two"}}, sender.messages())
}

func TestTickRecipientLookupFailure(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{}
	loop := NewLoop(LoopOptions{
		Queue:    q,
		Sender:   sender,
		Users:    &fakeUsers{err: errors.New("db down")},
		AdminIDs: []int64{1},
	})

	require.NoError(t, q.Enqueue(Broadcast("lost")))
	require.NoError(t, q.Enqueue(NotifyAdmins("kept")))

	assert.Equal(t, 1, loop.Tick(context.Background()))
	assert.Equal(t, []sentMessage{{1, "kept"}}, sender.messages())
}

func TestRunDiscardsOnShutdown(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{}
	loop := NewLoop(LoopOptions{Queue: q, Sender: sender, Users: users(1), Interval: time.Hour})

	require.NoError(t, q.Enqueue(Broadcast("never sent")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, sender.messages())
}

func TestRunDelivers(t *testing.T) {
	q := NewQueue(16)
	sender := &fakeSender{}
	loop := NewLoop(LoopOptions{Queue: q, Sender: sender, Users: users(1), Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	require.NoError(t, q.Enqueue(Broadcast("hello")))
	require.Eventually(t, func() bool {
		return len(sender.messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
