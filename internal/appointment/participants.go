package appointment

import (
	"fmt"

	"github.com/google/uuid"
)

// AddParticipant appends an attendee in tentative status, preserving invite
// order. Identity is unique per appointment; re-inviting the same attendee is
// rejected.
func AddParticipant(a *Appointment, participantID uuid.UUID) (Participant, error) {
	if participantID == uuid.Nil {
		return Participant{}, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	for _, p := range a.Participants {
		if p.ID == participantID {
			return Participant{}, fmt.Errorf("%w: participant %s already invited", ErrDuplicateParticipant, participantID)
		}
	}

	p := Participant{
		ID:            participantID,
		AppointmentID: a.ID,
		Status:        ParticipantTentative,
		Position:      len(a.Participants),
	}
	a.Participants = append(a.Participants, p)
	return p, nil
}

// SetParticipantStatus replaces the status of the matching participant. A
// missing participant is silently ignored (reported via the return value, not
// an error), matching how attendee responses arriving after an invite was
// withdrawn are handled.
func SetParticipantStatus(a *Appointment, participantID uuid.UUID, status ParticipantStatus) bool {
	for i := range a.Participants {
		if a.Participants[i].ID == participantID {
			a.Participants[i].Status = status
			return true
		}
	}
	return false
}
