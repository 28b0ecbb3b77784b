package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

func turn(role domain.Role, content string) domain.Turn {
	return domain.Turn{Role: role, Text: content}
}

func TestSessionMemory_Window(t *testing.T) {
	m := NewSessionMemory(4)
	for i := 0; i < 5; i++ {
		m.Append("s", turn(domain.RoleUser, fmt.Sprintf("q%d", i)), turn(domain.RoleAssistant, fmt.Sprintf("a%d", i)))
	}

	history, err := m.History(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "q3", history[0].Text)
	assert.Equal(t, "a4", history[3].Text)
	assert.Equal(t, 4, m.Len("s"))
}

func TestSessionMemory_Context(t *testing.T) {
	m := NewSessionMemory(20)
	m.Append("s", turn(domain.RoleUser, "one"), turn(domain.RoleAssistant, "two"), turn(domain.RoleUser, "three"))

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"last two oldest first", 2, []string{"two", "three"}},
		{"more than held", 10, []string{"one", "two", "three"}},
		{"zero", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tr := range m.Context("s", tt.n) {
				got = append(got, tr.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Nil(t, m.Context("unknown", 5))
}

func TestSessionMemory_ContextIsACopy(t *testing.T) {
	m := NewSessionMemory(20)
	m.Append("s", turn(domain.RoleUser, "original"))

	ctx := m.Context("s", 1)
	ctx[0].Text = "changed"
	assert.Equal(t, "original", m.Context("s", 1)[0].Text)
}

func TestSessionMemory_HistoryUnknownSession(t *testing.T) {
	_, err := NewSessionMemory(20).History(context.Background(), "chat_missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionMemory_DefaultWindow(t *testing.T) {
	assert.Equal(t, 20, NewSessionMemory(0).MaxTurns())
}

func TestSessionMemory_ConcurrentAppendKeepsPairs(t *testing.T) {
	m := NewSessionMemory(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Append("s", turn(domain.RoleUser, fmt.Sprintf("q%d", i)), turn(domain.RoleAssistant, fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	history, err := m.History(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, history, 100)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, domain.RoleUser, history[i].Role)
		assert.Equal(t, "a"+history[i].Text[1:], history[i+1].Text)
	}
}

func TestSessionMemory_BeginSerialisesExchanges(t *testing.T) {
	m := NewSessionMemory(20)
	release, err := m.Begin(context.Background(), "s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Begin(ctx, "s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := m.Begin(context.Background(), "other")
	require.NoError(t, err, "sessions are independent")
	other()

	release()
	release()
	again, err := m.Begin(context.Background(), "s")
	require.NoError(t, err)
	again()
}

func TestSessionMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewBoundedSessionMemory(20, 2)
	m.Append("a", turn(domain.RoleUser, "q1"))
	m.Append("b", turn(domain.RoleUser, "q2"))
	assert.Equal(t, 1, m.Len("a"), "touching a makes b the oldest")

	m.Append("c", turn(domain.RoleUser, "q3"))
	assert.Equal(t, 2, m.Sessions())
	assert.Equal(t, 1, m.Len("a"))
	assert.Equal(t, 1, m.Len("c"))

	_, err := m.History(context.Background(), "b")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionMemory_KeepsSessionsInExchange(t *testing.T) {
	m := NewBoundedSessionMemory(20, 1)
	release, err := m.Begin(context.Background(), "busy")
	require.NoError(t, err)

	m.Append("idle", turn(domain.RoleUser, "q"))
	assert.Equal(t, 2, m.Sessions(), "busy session survives")

	m.Append("busy", turn(domain.RoleUser, "q"), turn(domain.RoleAssistant, "a"))
	release()
	assert.Equal(t, 2, m.Len("busy"))

	m.Append("next", turn(domain.RoleUser, "q"))
	assert.Equal(t, 2, m.Sessions())
	_, err = m.History(context.Background(), "idle")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionMemory_DefaultSessionCap(t *testing.T) {
	m := NewSessionMemory(4)
	for i := 0; i < DefaultMaxSessions+10; i++ {
		m.Append(fmt.Sprintf("s%d", i), turn(domain.RoleUser, "q"))
	}
	assert.Equal(t, DefaultMaxSessions, m.Sessions())
	assert.Zero(t, m.Len("s0"))
	assert.Equal(t, 1, m.Len(fmt.Sprintf("s%d", DefaultMaxSessions+9)))
}
