package sidechannel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/sidechannel"
)

type recorder struct {
	sent []events.Envelope
	err  error
}

func (r *recorder) Send(env events.Envelope) error {
	if r.err != nil {
		return r.err
	}

	r.sent = append(r.sent, env)

	return nil
}

func TestSendChatAppendsOutgoingEntry(t *testing.T) {
	rec := &recorder{}
	ch := sidechannel.New(rec, "Dr. House")

	entry, err := ch.SendChat("  how are you feeling?  ")
	require.NoError(t, err)

	assert.True(t, entry.Outgoing)
	assert.Equal(t, "Dr. House", entry.Sender)
	assert.Equal(t, "how are you feeling?", entry.Text)
	assert.NotEmpty(t, entry.ID)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, events.TypeChat, rec.sent[0].Type)

	var ev events.ChatEvent
	require.NoError(t, rec.sent[0].Decode(&ev))
	assert.Equal(t, "how are you feeling?", ev.Text)

	assert.Equal(t, []string{entry.ID}, ids(ch))
}

func TestSendChatRejectsBlankText(t *testing.T) {
	rec := &recorder{}
	ch := sidechannel.New(rec, "me")

	_, err := ch.SendChat("   ")
	assert.ErrorIs(t, err, sidechannel.ErrEmptyMessage)
	assert.Empty(t, rec.sent)
	assert.Empty(t, ch.Transcript())
}

func TestSendChatFailureIsNotRecorded(t *testing.T) {
	ch := sidechannel.New(&recorder{err: errors.New("closed")}, "me")

	_, err := ch.SendChat("hi")
	assert.Error(t, err)
	assert.Empty(t, ch.Transcript())
}

func TestTranscriptKeepsArrivalOrder(t *testing.T) {
	ch := sidechannel.New(&recorder{}, "me")

	ch.HandleChat("p1", events.ChatEvent{Sender: "Ann", Text: "hello"})
	_, err := ch.SendChat("hi Ann")
	require.NoError(t, err)
	ch.HandleChat("p1", events.ChatEvent{Text: "no name"})

	tr := ch.Transcript()
	require.Len(t, tr, 3)
	assert.Equal(t, "Ann", tr[0].Sender)
	assert.False(t, tr[0].Outgoing)
	assert.True(t, tr[1].Outgoing)
	assert.Equal(t, "p1", tr[2].Sender)

	assert.Less(t, tr[0].ID, tr[2].ID)
}

func TestShareFileSendsPointerOnly(t *testing.T) {
	rec := &recorder{}
	ch := sidechannel.New(rec, "me")

	require.NoError(t, ch.ShareFile("https://relay/files/1/lab.pdf?sig=x", "lab.pdf"))

	require.Len(t, rec.sent, 1)
	var ev events.FileShareEvent
	require.NoError(t, rec.sent[0].Decode(&ev))
	assert.Equal(t, "lab.pdf", ev.Name)
	assert.Equal(t, "https://relay/files/1/lab.pdf?sig=x", ev.URL)

	require.NotNil(t, ch.Shared())
	assert.Equal(t, "lab.pdf", ch.Shared().Name)

	assert.ErrorIs(t, ch.ShareFile("", "x"), sidechannel.ErrEmptyFile)
}

func TestHandleFileShare(t *testing.T) {
	ch := sidechannel.New(&recorder{}, "me")

	f, err := ch.HandleFileShare("p1", events.FileShareEvent{URL: "u", Name: "scan.png"})
	require.NoError(t, err)
	assert.Equal(t, "p1", f.From)
	assert.Equal(t, &f, ch.Received())

	_, err = ch.HandleFileShare("p1", events.FileShareEvent{URL: "u"})
	assert.ErrorIs(t, err, sidechannel.ErrEmptyFile)
}

func TestResetClearsPointersButKeepsTranscript(t *testing.T) {
	ch := sidechannel.New(&recorder{}, "me")
	ch.HandleChat("p1", events.ChatEvent{Text: "bye"})
	_, err := ch.HandleFileShare("p1", events.FileShareEvent{URL: "u", Name: "n"})
	require.NoError(t, err)

	ch.Reset()
	assert.Nil(t, ch.Received())
	assert.Len(t, ch.Transcript(), 1)

	ch.Clear()
	assert.Empty(t, ch.Transcript())
}

func ids(ch *sidechannel.Channel) []string {
	var out []string
	for _, e := range ch.Transcript() {
		out = append(out, e.ID)
	}

	return out
}
