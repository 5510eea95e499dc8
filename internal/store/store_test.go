package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hire-intake/internal/slots"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := NewRedisClient(RedisConfig{Address: mr.Addr()})
	s := NewRedis(client, RedisConfig{TTL: ttl, Prefix: "test:"})
	c := &clock{t: time.Unix(1700000000, 0)}
	s.now = c.now
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mem := NewMemory()
	c := &clock{t: time.Unix(1700000000, 0)}
	mem.now = c.now

	rs, _ := newRedisStore(t, 0)
	return map[string]Store{"memory": mem, "redis": rs}
}

func TestEnsureConversationIsStable(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)
			require.NotEmpty(t, first)

			again, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)
			assert.Equal(t, first, again)

			other, err := s.EnsureConversation(ctx, "e1", "web", "t2")
			require.NoError(t, err)
			assert.NotEqual(t, first, other)
		})
	}
}

func TestIngestMessageIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)

			msg := Message{Role: RoleUser, Text: "Need a python engineer"}
			id1, err := s.IngestMessage(ctx, cid, msg, "k1")
			require.NoError(t, err)
			id2, err := s.IngestMessage(ctx, cid, msg, "k1")
			require.NoError(t, err)
			assert.Equal(t, id1, id2)

			id3, err := s.IngestMessage(ctx, cid, msg, "k2")
			require.NoError(t, err)
			assert.NotEqual(t, id1, id3)

			msgs, err := s.ListRecent(ctx, cid, 10)
			require.NoError(t, err)
			assert.Len(t, msgs, 2)
		})
	}
}

func TestIngestMessageValidation(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)

			_, err = s.IngestMessage(ctx, cid, Message{Role: "robot", Text: "hi"}, "")
			assert.ErrorIs(t, err, ErrInvalidRole)

			_, err = s.IngestMessage(ctx, "missing", Message{Role: RoleUser, Text: "hi"}, "")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.ListRecent(ctx, "missing", 5)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListRecentChronological(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				role := RoleUser
				if i%2 == 1 {
					role = RoleAssistant
				}
				_, err := s.IngestMessage(ctx, cid, Message{Role: role, Text: fmt.Sprintf("m%d", i)}, "")
				require.NoError(t, err)
			}

			msgs, err := s.ListRecent(ctx, cid, 3)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, "m2", msgs[0].Text)
			assert.Equal(t, "m3", msgs[1].Text)
			assert.Equal(t, "m4", msgs[2].Text)
			assert.Equal(t, RoleAssistant, msgs[1].Role)

			all, err := s.ListRecent(ctx, cid, 0)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestMessageMetaRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
			require.NoError(t, err)

			lo, hi := 18.0, 22.0
			meta := Meta{
				Stage: "enrich",
				Slots: &slots.Slots{
					RoleTitle: "python engineer",
					Stack:     []string{"python"},
					Budget:    &slots.Budget{Currency: "₹", Min: &lo, Max: &hi, Unit: "lpa"},
				},
			}
			_, err = s.IngestMessage(ctx, cid, Message{Role: RoleAssistant, Text: "Noted.", Meta: meta}, "")
			require.NoError(t, err)

			msgs, err := s.ListRecent(ctx, cid, 1)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			require.NotNil(t, msgs[0].Meta.Slots)
			assert.Equal(t, "enrich", msgs[0].Meta.Stage)
			assert.True(t, msgs[0].Meta.Slots.Equal(*meta.Slots))
			assert.False(t, msgs[0].CreatedAt.IsZero())
		})
	}
}

func TestRedisTTL(t *testing.T) {
	s, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
	require.NoError(t, err)
	_, err = s.IngestMessage(ctx, cid, Message{Role: RoleUser, Text: "hi"}, "k")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL("test:msgs:"+cid))
	assert.Equal(t, time.Hour, mr.TTL("test:idem:"+cid+":k"))

	mr.FastForward(2 * time.Hour)
	_, err = s.ListRecent(ctx, cid, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisFailedWriteLeavesKeyUnclaimed(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	ctx := context.Background()

	cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
	require.NoError(t, err)

	// A string under the messages key makes ZADD fail with WRONGTYPE.
	require.NoError(t, mr.Set("test:msgs:"+cid, "broken"))
	_, err = s.IngestMessage(ctx, cid, Message{Role: RoleUser, Text: "hi"}, "k")
	require.Error(t, err)
	assert.False(t, mr.Exists("test:idem:"+cid+":k"))

	mr.Del("test:msgs:" + cid)
	id, err := s.IngestMessage(ctx, cid, Message{Role: RoleUser, Text: "hi"}, "k")
	require.NoError(t, err)

	msgs, err := s.ListRecent(ctx, cid, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
}

func TestRedisEnsureRestoresRegistration(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	ctx := context.Background()

	cid, err := s.EnsureConversation(ctx, "e1", "web", "t1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:cid:"+cid))

	// Conversation key written without its registration.
	mr.Del("test:cid:" + cid)
	_, err = s.ListRecent(ctx, cid, 5)
	require.ErrorIs(t, err, ErrNotFound)

	again, err := s.EnsureConversation(ctx, "e1", "web", "t1")
	require.NoError(t, err)
	assert.Equal(t, cid, again)

	_, err = s.IngestMessage(ctx, cid, Message{Role: RoleUser, Text: "hi"}, "")
	assert.NoError(t, err)
}

func TestRedisPing(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Assistant ")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, role)

	_, err = ParseRole("")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
