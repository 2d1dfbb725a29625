package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddParticipant(t *testing.T) {
	a := &Appointment{ID: uuid.New(), Status: StatusPending}
	first := uuid.New()
	second := uuid.New()

	p1, err := AddParticipant(a, first)
	require.NoError(t, err)
	assert.Equal(t, ParticipantTentative, p1.Status)
	assert.Equal(t, 0, p1.Position)
	assert.Equal(t, a.ID, p1.AppointmentID)

	p2, err := AddParticipant(a, second)
	require.NoError(t, err)
	assert.Equal(t, 1, p2.Position)
	require.Len(t, a.Participants, 2)
}

func TestAddParticipant_DuplicateRejected(t *testing.T) {
	a := &Appointment{ID: uuid.New(), Status: StatusPending}
	id := uuid.New()

	_, err := AddParticipant(a, id)
	require.NoError(t, err)

	_, err = AddParticipant(a, id)
	assert.ErrorIs(t, err, ErrDuplicateParticipant)
	assert.Len(t, a.Participants, 1)
}

func TestAddParticipant_NilID(t *testing.T) {
	a := &Appointment{ID: uuid.New()}
	_, err := AddParticipant(a, uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetParticipantStatus(t *testing.T) {
	a := &Appointment{ID: uuid.New()}
	id := uuid.New()
	_, err := AddParticipant(a, id)
	require.NoError(t, err)

	matched := SetParticipantStatus(a, id, ParticipantAccepted)
	assert.True(t, matched)
	assert.Equal(t, ParticipantAccepted, a.Participants[0].Status)

	matched = SetParticipantStatus(a, id, ParticipantDeclined)
	assert.True(t, matched)
	assert.Equal(t, ParticipantDeclined, a.Participants[0].Status)
}

func TestSetParticipantStatus_UnknownParticipantIgnored(t *testing.T) {
	a := &Appointment{ID: uuid.New()}
	_, err := AddParticipant(a, uuid.New())
	require.NoError(t, err)

	matched := SetParticipantStatus(a, uuid.New(), ParticipantAccepted)
	assert.False(t, matched)
	assert.Equal(t, ParticipantTentative, a.Participants[0].Status)
}
