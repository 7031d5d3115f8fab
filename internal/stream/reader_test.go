package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vita-chat/internal/model"
)

const sample = "data: {\"type\":\"metadata\",\"conversation\":{\"id\":\"c1\",\"title\":\"T\"},\"userMessage\":{\"id\":\"u1\",\"sender\":\"USER\",\"content\":\"hi\"}}\n" +
	"data: {\"type\":\"content\",\"text\":\"Hel\"}\n" +
	"data: {\"type\":\"content\",\"text\":\"lo\"}\n" +
	"data: {\"type\":\"bot_message\",\"botMessage\":{\"id\":\"m1\",\"sender\":\"BOT\",\"content\":\"Hello!\",\"sourceUrls\":[\"https://a\"]}}\n" +
	"data: {\"type\":\"end\"}\n"

func collect(t *testing.T, r *Reader) ([]model.StreamEvent, error) {
	t.Helper()
	var out []model.StreamEvent
	for {
		ev, err := r.Next()
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

func types(evs []model.StreamEvent) []model.EventType {
	out := make([]model.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestReader_DecodesInOrder(t *testing.T) {
	evs, err := collect(t, NewReader(strings.NewReader(sample), 0))
	assert.ErrorIs(t, err, io.EOF)

	require.Equal(t, []model.EventType{
		model.EventMetadata, model.EventContent, model.EventContent, model.EventBotMessage, model.EventEnd,
	}, types(evs))
	assert.Equal(t, "c1", evs[0].Conversation.ID)
	assert.Equal(t, "u1", evs[0].UserMessage.ID)
	assert.Equal(t, "Hel", evs[1].Text)
	assert.Equal(t, []string{"https://a"}, evs[3].BotMessage.SourceURLs)
}

func TestReader_SplitAcrossReads(t *testing.T) {
	// one byte per Read forces every frame to straddle read boundaries
	evs, err := collect(t, NewReader(iotest.OneByteReader(strings.NewReader(sample)), 0))
	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, evs, 5)

	evs, err = collect(t, NewReader(iotest.HalfReader(strings.NewReader(sample)), 0))
	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, evs, 5)
}

func TestReader_SkipsMalformedAndNoise(t *testing.T) {
	input := ": keep-alive comment\n" +
		"event: message\n" +
		"\n" +
		"data: {\"type\":\"content\",\"text\":\"a\"}\r\n" +
		"data: {not json}\n" +
		"data: {\"text\":\"no type\"}\n" +
		"data:{\"type\":\"content\",\"text\":\"b\"}\n" +
		"data: [DONE]\n" +
		"data: {\"type\":\"heartbeat\"}\n"

	r := NewReader(strings.NewReader(input), 0)
	evs, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, evs, 3)
	assert.Equal(t, "a", evs[0].Text)
	assert.Equal(t, "b", evs[1].Text)
	assert.Equal(t, model.EventType("heartbeat"), evs[2].Type)
	assert.Equal(t, 2, r.Dropped())
}

func TestReader_OversizedFrameDropped(t *testing.T) {
	big := "data: {\"type\":\"content\",\"text\":\"" + strings.Repeat("x", 200) + "\"}\n"
	input := big + "data: {\"type\":\"end\"}\n"

	r := NewReader(strings.NewReader(input), 64)
	evs, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, evs, 1)
	assert.Equal(t, model.EventEnd, evs[0].Type)
	assert.Equal(t, 1, r.Dropped())
}

func TestReader_LastLineWithoutNewline(t *testing.T) {
	evs, err := collect(t, NewReader(strings.NewReader(`data: {"type":"end"}`), 0))
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, evs, 1)
}

func TestReader_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(strings.NewReader("data: {\"type\":\"content\",\"text\":\"a\"}\n"), iotest.ErrReader(boom)), 0)

	evs, err := collect(t, r)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, evs, 1)
}

type blockingBody struct {
	closed chan struct{}
}

func (b *blockingBody) Read(p []byte) (int, error) {
	<-b.closed
	return 0, errors.New("read on closed body")
}

func (b *blockingBody) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	return nil
}

func TestIdleCloser_TimesOut(t *testing.T) {
	body := &blockingBody{closed: make(chan struct{})}
	ic := NewIdleCloser(body, 20*time.Millisecond)
	defer ic.Close()

	start := time.Now()
	_, err := ic.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrStreamIdle)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIdleCloser_PassesThrough(t *testing.T) {
	ic := NewIdleCloser(io.NopCloser(strings.NewReader("hello")), time.Second)
	data, err := io.ReadAll(ic)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NoError(t, ic.Close())
	assert.NoError(t, ic.Close())
}
