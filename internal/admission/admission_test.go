package admission_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/admission"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
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

func TestPatientRequestJoin(t *testing.T) {
	rec := &recorder{}
	c := admission.NewController(domain.RolePatient, rec)

	require.NoError(t, c.RequestJoin("Ann", "headache for 3 days"))
	assert.Equal(t, admission.StateWaiting, c.State())

	require.Len(t, rec.sent, 1)
	assert.Equal(t, events.TypeJoinRequest, rec.sent[0].Type)
	assert.Empty(t, rec.sent[0].To)

	var ev events.JoinRequestEvent
	require.NoError(t, rec.sent[0].Decode(&ev))
	assert.Equal(t, "Ann", ev.Name)
	assert.Equal(t, "headache for 3 days", ev.Intake)

	assert.ErrorIs(t, c.RequestJoin("Ann", ""), admission.ErrBadState)
}

func TestPatientRequestSendFailureReturnsToIdle(t *testing.T) {
	c := admission.NewController(domain.RolePatient, &recorder{err: errors.New("link down")})

	assert.Error(t, c.RequestJoin("Ann", ""))
	assert.Equal(t, admission.StateIdle, c.State())
}

func TestPatientGrant(t *testing.T) {
	c := admission.NewController(domain.RolePatient, &recorder{})

	assert.ErrorIs(t, c.HandleGranted("doc"), admission.ErrBadState)
	assert.False(t, c.Granted())

	require.NoError(t, c.RequestJoin("Ann", ""))
	require.NoError(t, c.HandleGranted("doc"))

	assert.True(t, c.Granted())
	assert.Equal(t, "doc", c.Granter())

	// второй допуск не меняет состояние
	assert.ErrorIs(t, c.HandleGranted("doc"), admission.ErrBadState)
}

func TestPatientRejection(t *testing.T) {
	c := admission.NewController(domain.RolePatient, &recorder{})
	require.NoError(t, c.RequestJoin("Ann", ""))

	require.NoError(t, c.HandleRejected("doc", "please book an appointment"))
	assert.Equal(t, admission.StateRejected, c.State())
	assert.Equal(t, "please book an appointment", c.Reason())
	assert.False(t, c.Granted())

	assert.ErrorIs(t, c.HandleGranted("doc"), admission.ErrBadState)
}

func TestRolesAreEnforced(t *testing.T) {
	clinician := admission.NewController(domain.RoleClinician, &recorder{})
	assert.ErrorIs(t, clinician.RequestJoin("Dr", ""), admission.ErrWrongRole)
	assert.ErrorIs(t, clinician.HandleGranted("x"), admission.ErrWrongRole)

	patient := admission.NewController(domain.RolePatient, &recorder{})
	assert.ErrorIs(t, patient.HandleJoinRequest("x", events.JoinRequestEvent{}), admission.ErrWrongRole)
	assert.ErrorIs(t, patient.Approve("x"), admission.ErrWrongRole)
}

func TestRepeatedRequestReplacesEntry(t *testing.T) {
	c := admission.NewController(domain.RoleClinician, &recorder{})

	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{Name: "Ann", Intake: "first"}))
	require.NoError(t, c.HandleJoinRequest("p2", events.JoinRequestEvent{Name: "Bob"}))
	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{Name: "Ann", Intake: "second"}))

	reqs := c.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "p1", reqs[0].PeerID)
	assert.Equal(t, "second", reqs[0].Intake)
	assert.Equal(t, "p2", reqs[1].PeerID)
	assert.False(t, reqs[0].ReceivedAt.IsZero())
}

func TestApproveSendsAddressedGrant(t *testing.T) {
	rec := &recorder{}
	c := admission.NewController(domain.RoleClinician, rec)
	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{Name: "Ann"}))

	assert.False(t, c.Admitted("p1"))
	require.NoError(t, c.Approve("p1"))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, events.TypeConnectionGranted, rec.sent[0].Type)
	assert.Equal(t, "p1", rec.sent[0].To)
	assert.Empty(t, c.Requests())
	assert.True(t, c.Admitted("p1"))

	assert.ErrorIs(t, c.Approve("p1"), admission.ErrUnknownRequest)
}

func TestRejectSendsAddressedRejection(t *testing.T) {
	rec := &recorder{}
	c := admission.NewController(domain.RoleClinician, rec)
	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{Name: "Ann"}))

	require.NoError(t, c.Reject("p1", "not today"))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, events.TypeConnectionRejected, rec.sent[0].Type)
	assert.Equal(t, "p1", rec.sent[0].To)

	var ev events.DecisionEvent
	require.NoError(t, rec.sent[0].Decode(&ev))
	assert.Equal(t, "not today", ev.Message)

	assert.Empty(t, c.Requests())
	assert.False(t, c.Admitted("p1"))
}

func TestDecisionKeepsRequestWhenSendFails(t *testing.T) {
	rec := &recorder{}
	c := admission.NewController(domain.RoleClinician, rec)
	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{Name: "Ann"}))

	rec.err = errors.New("link down")
	assert.Error(t, c.Approve("p1"))

	assert.Len(t, c.Requests(), 1)
	assert.False(t, c.Admitted("p1"))
}

func TestRemoveAndReset(t *testing.T) {
	c := admission.NewController(domain.RoleClinician, &recorder{})
	require.NoError(t, c.HandleJoinRequest("p1", events.JoinRequestEvent{}))
	require.NoError(t, c.HandleJoinRequest("p2", events.JoinRequestEvent{}))
	require.NoError(t, c.Approve("p2"))

	assert.True(t, c.Remove("p1"))
	assert.False(t, c.Remove("p1"))
	assert.Empty(t, c.Requests())

	c.Reset()
	assert.Equal(t, admission.StateIdle, c.State())
	assert.False(t, c.Admitted("p2"))
}
