package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/remote"
	"github.com/qrave1/TeleVisit/internal/session"
)

type fakeCall struct {
	calls    []string
	uploaded string
	snap     session.Snapshot
	chat     []domain.ChatEntry
}

func (f *fakeCall) rec(s string) error { f.calls = append(f.calls, s); return nil }

func (f *fakeCall) End() error                         { return f.rec("end") }
func (f *fakeCall) ToggleMute() error                  { return f.rec("mute") }
func (f *fakeCall) ToggleVideo() error                 { return f.rec("video") }
func (f *fakeCall) FlipCamera(context.Context) error   { return f.rec("flip") }
func (f *fakeCall) StartScreenShare(context.Context) error {
	return f.rec("share")
}
func (f *fakeCall) StopScreenShare() error      { return f.rec("unshare") }
func (f *fakeCall) SendChat(text string) error  { return f.rec("chat:" + text) }
func (f *fakeCall) Approve(peerID string) error { return f.rec("approve:" + peerID) }
func (f *fakeCall) Reject(peerID, message string) error {
	return f.rec("reject:" + peerID + ":" + message)
}
func (f *fakeCall) Transcript() []domain.ChatEntry { return f.chat }
func (f *fakeCall) Snapshot() session.Snapshot     { return f.snap }

func (f *fakeCall) ShareFile(_ context.Context, name string, r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.uploaded = string(body)

	return f.rec("file:" + name)
}

type fakeNotes struct {
	patient    string
	transcript string
}

func (n *fakeNotes) Generate(_ context.Context, patientID, transcript string) (remote.Note, error) {
	n.patient, n.transcript = patientID, transcript
	return remote.Note{Subjective: "cough", Plan: "rest"}, nil
}

func TestREPLDispatch(t *testing.T) {
	call := &fakeCall{}
	r := newREPL(call, nil, io.Discard)
	ctx := context.Background()

	for _, line := range []string{
		"mute",
		"video",
		"flip",
		"share",
		"unshare",
		`chat "how are you feeling?"`,
		"approve pat-1",
		"reject pat-2 please book another slot",
		"   ",
	} {
		require.NoError(t, r.exec(ctx, line), line)
	}

	assert.Equal(t, []string{
		"mute",
		"video",
		"flip",
		"share",
		"unshare",
		"chat:how are you feeling?",
		"approve:pat-1",
		"reject:pat-2:please book another slot",
	}, call.calls)

	assert.ErrorIs(t, r.exec(ctx, "end"), errQuit)
	assert.Equal(t, "end", call.calls[len(call.calls)-1])
}

func TestREPLUsageErrors(t *testing.T) {
	r := newREPL(&fakeCall{}, nil, io.Discard)
	ctx := context.Background()

	for _, line := range []string{"approve", "reject", "file", "notes", "dance", `chat "open`} {
		assert.Error(t, r.exec(ctx, line), line)
	}

	assert.EqualError(t, r.exec(ctx, "notes p1"), "notes service is not configured")
}

func TestREPLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab results.txt")
	require.NoError(t, os.WriteFile(path, []byte("ok"), 0o600))

	call := &fakeCall{}
	r := newREPL(call, nil, io.Discard)

	require.NoError(t, r.exec(context.Background(), `file "`+path+`"`))
	assert.Equal(t, "ok", call.uploaded)
	// собеседник видит только имя файла, без локального каталога
	assert.Equal(t, []string{"file:lab results.txt"}, call.calls)

	r.open = func(string) (io.ReadCloser, error) { return nil, errors.New("denied") }
	assert.Error(t, r.exec(context.Background(), "file x"))
}

func TestREPLRequestsAndStatus(t *testing.T) {
	call := &fakeCall{snap: session.Snapshot{
		Status: domain.StatusConnected,
		Requests: []domain.JoinRequest{
			{PeerID: "pat-1", Name: "Pat", Intake: "fever"},
		},
	}}

	var out bytes.Buffer
	r := newREPL(call, nil, &out)

	require.NoError(t, r.exec(context.Background(), "requests"))
	assert.Contains(t, out.String(), "pat-1\tPat\tfever")

	require.NoError(t, r.exec(context.Background(), "status"))
	assert.Contains(t, out.String(), "status=connected")

	call.snap.Requests = nil
	out.Reset()
	require.NoError(t, r.exec(context.Background(), "requests"))
	assert.Equal(t, "no waiting patients\n", out.String())
}

func TestREPLNotes(t *testing.T) {
	notes := &fakeNotes{}
	call := &fakeCall{}

	var out bytes.Buffer
	r := newREPL(call, notes, &out)

	assert.EqualError(t, r.exec(context.Background(), "notes p-7"), "chat transcript is empty")

	call.chat = []domain.ChatEntry{{Sender: "Pat", Text: "dry cough"}, {Sender: "Dr", Text: "since when?"}}
	require.NoError(t, r.exec(context.Background(), "notes p-7"))

	assert.Equal(t, "p-7", notes.patient)
	assert.Equal(t, "Pat: dry cough\nDr: since when?\n", notes.transcript)
	assert.True(t, strings.HasPrefix(out.String(), "S: cough\n"))
	assert.Contains(t, out.String(), "P: rest")
}
