package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"vidquiz/logger"
)

// AnswerDuration is how long players have to answer once a question is
// broadcast. Expiry triggers the same feedback transition as a manual
// show_feedback from the host.
const AnswerDuration = 60 * time.Second

// answerTimer is a one-shot countdown owned by a game session. At most
// one is armed per session; arming a new one cancels the previous timer
// first, and Cancel is safe to call any number of times, including after
// the timer has already fired.
type answerTimer struct {
	timer  clockwork.Timer
	stopCh chan struct{}
	once   sync.Once
}

// startAnswerTimer arms a timer that invokes fn after d. fn runs on its
// own goroutine and must go through the session's normal transition path;
// a panic in fn is logged and does not take down anything else.
func startAnswerTimer(clock clockwork.Clock, d time.Duration, fn func()) *answerTimer {
	t := &answerTimer{
		timer:  clock.NewTimer(d),
		stopCh: make(chan struct{}),
	}

	go func() {
		select {
		case <-t.timer.Chan():
			// A cancel racing the fire wins: the callback must not run
			// once the owning session has moved on.
			select {
			case <-t.stopCh:
				return
			default:
			}
			defer func() {
				if r := recover(); r != nil {
					logger.S().Errorf("answer timer callback panicked: %v", r)
				}
			}()
			fn()
		case <-t.stopCh:
			stopAndDrainTimer(t.timer)
		}
	}()

	return t
}

// Cancel stops the timer. Idempotent; tolerates the timer having already
// fired.
func (t *answerTimer) Cancel() {
	t.once.Do(func() {
		close(t.stopCh)
	})
}

// stopAndDrainTimer stops a timer and drains its channel so the backing
// goroutine cannot leak, following the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
