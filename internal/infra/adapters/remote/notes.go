package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/qrave1/TeleVisit/internal/domain"
)

type NotesRequest struct {
	PatientID  string `json:"patient_id"`
	Transcript string `json:"transcript"`
}

// Note - черновик SOAP заметки для проверки врачом
type Note struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

type NotesClient struct {
	c *client
}

// NewNotesClient - endpoint это полный адрес сервиса генерации заметок
func NewNotesClient(endpoint, token string, hc *http.Client) (*NotesClient, error) {
	c, err := newClient(endpoint, token, hc)
	if err != nil {
		return nil, err
	}

	return &NotesClient{c: c}, nil
}

func (n *NotesClient) Generate(ctx context.Context, patientID, transcript string) (Note, error) {
	if strings.TrimSpace(transcript) == "" {
		return Note{}, fmt.Errorf("empty transcript for patient %s", patientID)
	}

	body, err := json.Marshal(NotesRequest{PatientID: patientID, Transcript: transcript})
	if err != nil {
		return Note{}, fmt.Errorf("marshal notes request: %w", err)
	}

	req, err := n.c.newRequest(ctx, http.MethodPost, "", bytes.NewReader(body))
	if err != nil {
		return Note{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	var note Note
	if err = n.c.do(req, &note); err != nil {
		return Note{}, fmt.Errorf("generate notes: %w", err)
	}

	return note, nil
}

// FormatTranscript - переписка в виде "Имя: текст" построчно
func FormatTranscript(entries []domain.ChatEntry) string {
	var b strings.Builder

	for _, e := range entries {
		b.WriteString(e.Sender)
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}

	return b.String()
}
