package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidquiz/models"
)

// collectExpiry delivers the answers handed to a winning expiry callback.
func collectExpiry(results chan<- []models.AnswerSubmission) func([]models.AnswerSubmission) {
	return func(answers []models.AnswerSubmission) {
		results <- answers
	}
}

func TestAnswerTimerExpiryTriggersFeedback(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	s.AddPlayer("alice")
	s.AddPlayer("bob")
	s.AddPlayer("carol")
	s.StartGame()

	results := make(chan []models.AnswerSubmission, 1)
	s.BeginQuestion(models.Question{Question: "q?"}, collectExpiry(results))

	_, _, err := s.SubmitAnswer("1", "only alice answered")
	require.NoError(t, err)

	clock.Advance(61 * time.Second)

	select {
	case answers := <-results:
		require.Len(t, answers, 1)
		assert.Equal(t, "only alice answered", answers[0].Answer)
	case <-time.After(time.Second):
		t.Fatal("timer expiry never fired")
	}

	assert.Equal(t, models.PhaseFeedback, s.Phase())
}

func TestAnswerTimerNoopAfterManualFeedback(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	s.AddPlayer("alice")
	s.StartGame()

	results := make(chan []models.AnswerSubmission, 1)
	s.BeginQuestion(models.Question{Question: "q?"}, collectExpiry(results))

	// manual trigger wins the race; expiry must not fire a second
	// transition
	_, changed := s.ShowFeedback()
	require.True(t, changed)

	clock.Advance(61 * time.Second)

	select {
	case <-results:
		t.Fatal("cancelled timer still fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRearmingCancelsPreviousTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	s.AddPlayer("alice")
	s.StartGame()

	firstFired := make(chan []models.AnswerSubmission, 1)
	secondFired := make(chan []models.AnswerSubmission, 1)

	s.BeginQuestion(models.Question{Question: "q1?"}, collectExpiry(firstFired))
	// rapid double broadcast: the second arm replaces the first timer
	s.BeginQuestion(models.Question{Question: "q2?"}, collectExpiry(secondFired))

	clock.Advance(61 * time.Second)

	select {
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("replacement timer never fired")
	}
	assert.Equal(t, models.PhaseFeedback, s.Phase())

	select {
	case <-firstFired:
		t.Fatal("replaced timer still fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAnswerTimerCancelIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 1)

	timer := startAnswerTimer(clock, AnswerDuration, func() {
		fired <- struct{}{}
	})

	timer.Cancel()
	timer.Cancel() // safe to call repeatedly

	clock.Advance(61 * time.Second)

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAnswerTimerCancelAfterFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 1)

	timer := startAnswerTimer(clock, AnswerDuration, func() {
		fired <- struct{}{}
	})

	clock.Advance(61 * time.Second)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// cancelling after the fact must not panic or block
	timer.Cancel()
}
