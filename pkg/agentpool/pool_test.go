package agentpool

import (
	"errors"
	"fmt"
	"testing"

	"ai-agent-gateway/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConstructor(counter *int) Constructor {
	return func(agentID string) (*agent.Engine, error) {
		if counter != nil {
			*counter++
		}
		descriptor := &agent.Descriptor{AgentID: agentID, Model: "test-model"}
		return agent.NewEngine(descriptor, nil), nil
	}
}

func TestAcquireConstructsOnMiss(t *testing.T) {
	built := 0
	pool := New(3, testConstructor(&built))

	engine, err := pool.Acquire("neochat")
	require.NoError(t, err)
	require.NotNil(t, engine)
	assert.Equal(t, 1, built)
	assert.Equal(t, 1, pool.Len())
}

func TestAcquireReusesPooledEngine(t *testing.T) {
	built := 0
	pool := New(3, testConstructor(&built))

	first, err := pool.Acquire("neochat")
	require.NoError(t, err)
	second, err := pool.Acquire("neochat")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

func TestEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	pool := New(3, testConstructor(nil))

	for _, id := range []string{"a", "b", "c"} {
		_, err := pool.Acquire(id)
		require.NoError(t, err)
	}

	// Touch "a" so "b" becomes the LRU entry.
	_, err := pool.Acquire("a")
	require.NoError(t, err)

	_, err = pool.Acquire("d")
	require.NoError(t, err)

	assert.Equal(t, 3, pool.Len())
	assert.True(t, pool.Contains("a"))
	assert.False(t, pool.Contains("b"))
	assert.True(t, pool.Contains("c"))
	assert.True(t, pool.Contains("d"))
}

func TestFiftyFirstAgentEvictsOldest(t *testing.T) {
	pool := New(DefaultCapacity, testConstructor(nil))

	for i := 0; i < DefaultCapacity; i++ {
		_, err := pool.Acquire(fmt.Sprintf("agent-%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, DefaultCapacity, pool.Len())

	_, err := pool.Acquire("agent-50")
	require.NoError(t, err)

	assert.Equal(t, DefaultCapacity, pool.Len())
	assert.False(t, pool.Contains("agent-0"))
	assert.True(t, pool.Contains("agent-50"))
}

func TestConstructorErrorDoesNotPoison(t *testing.T) {
	fail := true
	pool := New(2, func(agentID string) (*agent.Engine, error) {
		if fail {
			return nil, errors.New("descriptor missing")
		}
		return agent.NewEngine(&agent.Descriptor{AgentID: agentID}, nil), nil
	})

	_, err := pool.Acquire("flaky")
	require.Error(t, err)
	assert.Equal(t, 0, pool.Len())

	fail = false
	engine, err := pool.Acquire("flaky")
	require.NoError(t, err)
	assert.NotNil(t, engine)
}
