package creditcheck

import (
	"context"
	"hash/fnv"
	"time"
)

// StubBureau stands in for the bureau integration in dev environments. It
// returns a deterministic score per subject so repeated runs are stable.
type StubBureau struct{}

func NewStubBureau() *StubBureau {
	return &StubBureau{}
}

func (b *StubBureau) Fetch(_ context.Context, subjectID string) (Report, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	// Scores land in 300..850, the usual bureau range.
	score := 300 + int(h.Sum32()%551)

	return Report{
		SubjectID:   subjectID,
		ReferenceID: "stub-" + subjectID,
		BureauScore: score,
		RetrievedAt: time.Now(),
	}, nil
}
