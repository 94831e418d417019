package display

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spherical/glance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (r *recordingTransport) Send(ctx context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) Taps(ctx context.Context) (<-chan int, error) {
	return nil, errors.New("not used")
}

type fixedPage []string

func (f fixedPage) CurrentPage() []string { return f }

func TestShowPageJoinsLines(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{"Platform 3", "Trains to Lyon"}, [2]string{}, nil)

	require.NoError(t, e.ShowPage(context.Background()))

	require.Len(t, tr.sent, 1)
	assert.Equal(t, domain.Message{Code: domain.MsgDisplayText, Payload: "Platform 3\nTrains to Lyon"}, tr.sent[0])
}

func TestShowEmptyPageBlanks(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{}, [2]string{}, nil)

	require.NoError(t, e.ShowPage(context.Background()))
	require.NoError(t, e.Blank(context.Background()))

	require.Len(t, tr.sent, 2)
	assert.Equal(t, " ", tr.sent[0].Payload)
	assert.Equal(t, " ", tr.sent[1].Payload)
}

func TestShowPageIfSkipsStaleSend(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{"Exit"}, [2]string{}, nil)

	shown, err := e.ShowPageIf(context.Background(), func() bool { return false })
	require.NoError(t, err)
	assert.False(t, shown)
	assert.Empty(t, tr.sent)

	shown, err = e.ShowPageIf(context.Background(), func() bool { return true })
	require.NoError(t, err)
	assert.True(t, shown)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "Exit", tr.sent[0].Payload)
}

func TestShowPrompt(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{}, [2]string{}, nil)
	require.NoError(t, e.ShowPrompt(context.Background()))
	assert.Equal(t, DefaultPrompt[0]+"\n"+DefaultPrompt[1], tr.sent[0].Payload)

	tr = &recordingTransport{}
	e = NewEmitter(tr, fixedPage{}, [2]string{"Look", "Tap"}, nil)
	require.NoError(t, e.ShowPrompt(context.Background()))
	assert.Equal(t, "Look\nTap", tr.sent[0].Payload)
}

func TestStatusIsOneLine(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{}, [2]string{}, nil)

	require.NoError(t, e.Status(context.Background(), "reading\ntext"))
	assert.Equal(t, "reading text", tr.sent[0].Payload)
}

func TestSetTapSubscription(t *testing.T) {
	tr := &recordingTransport{}
	e := NewEmitter(tr, fixedPage{}, [2]string{}, nil)

	require.NoError(t, e.SetTapSubscription(context.Background(), true))
	require.NoError(t, e.SetTapSubscription(context.Background(), false))

	assert.Equal(t, []domain.Message{
		{Code: domain.MsgTapSubscription, Payload: "1"},
		{Code: domain.MsgTapSubscription, Payload: "0"},
	}, tr.sent)
}

func TestSendFailureIsTransportError(t *testing.T) {
	tr := &recordingTransport{err: errors.New("link down")}
	e := NewEmitter(tr, fixedPage{"x"}, [2]string{}, nil)

	err := e.ShowPage(context.Background())
	assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))
	assert.Contains(t, err.Error(), "link down")
}
