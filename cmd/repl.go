package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/remote"
	"github.com/qrave1/TeleVisit/internal/session"
)

var errQuit = errors.New("quit")

// callControls - то, чем REPL управляет звонком
type callControls interface {
	End() error
	ToggleMute() error
	ToggleVideo() error
	FlipCamera(ctx context.Context) error
	StartScreenShare(ctx context.Context) error
	StopScreenShare() error
	SendChat(text string) error
	ShareFile(ctx context.Context, name string, r io.Reader) error
	Approve(peerID string) error
	Reject(peerID, message string) error
	Transcript() []domain.ChatEntry
	Snapshot() session.Snapshot
}

type noteGenerator interface {
	Generate(ctx context.Context, patientID, transcript string) (remote.Note, error)
}

type repl struct {
	call  callControls
	notes noteGenerator
	out   io.Writer

	open func(name string) (io.ReadCloser, error)
}

func newREPL(call callControls, notes noteGenerator, out io.Writer) *repl {
	return &repl{
		call:  call,
		notes: notes,
		out:   out,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}
}

const replHelp = `commands:
  mute | video | flip | share | unshare
  chat <text>            send a chat message
  file <path>            upload a file and share the link
  requests               list waiting patients
  approve <peer>         admit a patient
  reject <peer> [text]   decline a patient
  notes <patient-id>     generate a clinical note from the chat
  status                 print the current call state
  end                    end the call and exit`

// exec разбирает строку и выполняет одну команду. errQuit - пользователь завершил звонок.
func (r *repl) exec(ctx context.Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}

	if len(args) == 0 {
		return nil
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, replHelp)
		return nil
	case "mute":
		return r.call.ToggleMute()
	case "video":
		return r.call.ToggleVideo()
	case "flip":
		return r.call.FlipCamera(ctx)
	case "share":
		return r.call.StartScreenShare(ctx)
	case "unshare":
		return r.call.StopScreenShare()
	case "chat":
		return r.call.SendChat(strings.Join(rest, " "))
	case "file":
		if len(rest) != 1 {
			return errors.New("usage: file <path>")
		}
		return r.shareFile(ctx, rest[0])
	case "requests":
		r.printRequests()
		return nil
	case "approve":
		if len(rest) != 1 {
			return errors.New("usage: approve <peer>")
		}
		return r.call.Approve(rest[0])
	case "reject":
		if len(rest) == 0 {
			return errors.New("usage: reject <peer> [message]")
		}
		return r.call.Reject(rest[0], strings.Join(rest[1:], " "))
	case "notes":
		if len(rest) != 1 {
			return errors.New("usage: notes <patient-id>")
		}
		return r.generateNotes(ctx, rest[0])
	case "status":
		snap := r.call.Snapshot()
		fmt.Fprintf(r.out, "status=%s reconnecting=%t quality=%s admission=%s remote=%s\n",
			snap.Status, snap.Reconnecting, snap.Quality, snap.Admission, snap.RemotePeer)
		return nil
	case "end", "exit", "quit":
		if err := r.call.End(); err != nil {
			return err
		}
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func (r *repl) shareFile(ctx context.Context, path string) error {
	f, err := r.open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return r.call.ShareFile(ctx, filepath.Base(path), f)
}

func (r *repl) printRequests() {
	reqs := r.call.Snapshot().Requests
	if len(reqs) == 0 {
		fmt.Fprintln(r.out, "no waiting patients")
		return
	}

	for _, req := range reqs {
		fmt.Fprintf(r.out, "%s\t%s\t%s\n", req.PeerID, req.Name, req.Intake)
	}
}

func (r *repl) generateNotes(ctx context.Context, patientID string) error {
	if r.notes == nil {
		return errors.New("notes service is not configured")
	}

	transcript := remote.FormatTranscript(r.call.Transcript())
	if transcript == "" {
		return errors.New("chat transcript is empty")
	}

	note, err := r.notes.Generate(ctx, patientID, transcript)
	if err != nil {
		return err
	}

	slog.Info("clinical note generated", slog.String("patient_id", patientID))

	fmt.Fprintf(r.out, "S: %s\nO: %s\nA: %s\nP: %s\n", note.Subjective, note.Objective, note.Assessment, note.Plan)

	return nil
}
