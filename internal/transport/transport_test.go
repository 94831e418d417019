package transport

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spherical/glance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecordsSends(t *testing.T) {
	var seen []string
	m := NewMemory(4, func(msg domain.Message) { seen = append(seen, msg.Payload) })
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, domain.Message{Code: domain.MsgTapSubscription, Payload: "1"}))
	require.NoError(t, m.Send(ctx, domain.Message{Code: domain.MsgDisplayText, Payload: "hello"}))
	require.NoError(t, m.Send(ctx, domain.Message{Code: domain.MsgTapSubscription, Payload: "0"}))

	assert.Len(t, m.Sent(), 3)
	assert.Equal(t, []string{"1", "hello", "0"}, seen)
	text, ok := m.LastText()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
}

func TestMemorySendHonorsContext(t *testing.T) {
	m := NewMemory(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, domain.Message{Code: domain.MsgDisplayText, Payload: "x"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))
	assert.Empty(t, m.Sent())
	_, ok := m.LastText()
	assert.False(t, ok)
}

func TestMemoryTaps(t *testing.T) {
	m := NewMemory(3, nil)
	ctx := context.Background()
	taps, err := m.Taps(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Tap(ctx, 1))
	require.NoError(t, m.Tap(ctx, 3))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	var got []int
	for n := range taps {
		got = append(got, n)
	}
	assert.Equal(t, []int{1, 3}, got)
	assert.Error(t, m.Tap(ctx, 2))
}

func TestMemoryTapBlocksUntilContextDone(t *testing.T) {
	m := NewMemory(0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, m.Tap(ctx, 1), context.DeadlineExceeded)
}

func TestParseTap(t *testing.T) {
	n, err := ParseTap(" 2\n")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ParseTap("double")
	assert.Error(t, err)
}

func TestCaptureReplyToImage(t *testing.T) {
	r := NewRedis(nil, "", nil)
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base.Add(250 * time.Millisecond) }
	settings := domain.CaptureSettings{Quality: 70, Exposure: domain.ExposureSettings{MeteringMode: "center"}}

	img, err := r.toImage(CaptureReply{ID: "a", Image: []byte{1, 2, 3}}, settings, base)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Metadata.ByteSize)
	assert.Equal(t, 250*time.Millisecond, img.Metadata.Elapsed)
	assert.Equal(t, "center", img.Metadata.Exposure.MeteringMode)

	_, err = r.toImage(CaptureReply{ID: "a", Error: "lens covered"}, settings, base)
	assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))
	assert.Contains(t, err.Error(), "lens covered")

	_, err = r.toImage(CaptureReply{ID: "a"}, settings, base)
	assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))
}

func redisFromEnv(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRoundTrip(t *testing.T) {
	client := redisFromEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewRedis(client, "glance-test:", nil)
	taps, err := r.Taps(ctx)
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, "glance-test:accessory:taps", "3").Err())

	select {
	case n := <-taps:
		assert.Equal(t, 3, n)
	case <-ctx.Done():
		t.Fatal("no tap received")
	}

	sub := client.Subscribe(ctx, "glance-test:accessory:capture:req")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)
	go func() {
		msg := <-sub.Channel()
		var req CaptureRequest
		if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
			return
		}
		data, _ := json.Marshal(CaptureReply{ID: req.ID, Image: []byte{0xFF, 0xD8}})
		client.Publish(ctx, "glance-test:accessory:capture:resp", data)
	}()

	img, err := r.RequestCapture(ctx, domain.CaptureSettings{Quality: 60})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, img.Data)
	assert.Equal(t, 60, img.Metadata.Quality)
}
