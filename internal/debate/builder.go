package debate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alienxp03/council/internal/core"
)

// recordBuilder accumulates a session record as the debate advances.
// Only the orchestrator goroutine writes to it; a record is handed out
// solely through snapshot, and only once the session has reached a
// terminal phase.
type recordBuilder struct {
	rec  core.SessionRecord
	done bool
}

func newRecordBuilder(question string, members []core.CouncilMember) *recordBuilder {
	roster := make([]core.CouncilMember, len(members))
	copy(roster, members)

	return &recordBuilder{
		rec: core.SessionRecord{
			ID:        uuid.New().String(),
			Question:  question,
			Members:   roster,
			Phase:     core.PhaseInit,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func (b *recordBuilder) setPhase(p core.Phase) {
	b.rec.Phase = p
}

func (b *recordBuilder) addRound(r core.RoundResult) {
	b.rec.Rounds = append(b.rec.Rounds, r)
}

func (b *recordBuilder) setModerator(res core.MemberResult) {
	b.rec.Moderator = res
}

// finish seals the record in a terminal phase.
func (b *recordBuilder) finish(p core.Phase) {
	now := time.Now().UTC()
	b.rec.Phase = p
	b.rec.CompletedAt = &now
	b.done = true
}

// snapshot returns a copy of the finished record. Calling it before
// finish is a programming error.
func (b *recordBuilder) snapshot() (*core.SessionRecord, error) {
	if !b.done {
		return nil, fmt.Errorf("session %s is still in phase %s", b.rec.ID, b.rec.Phase)
	}
	rec := b.rec
	return &rec, nil
}
