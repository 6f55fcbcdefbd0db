package models

// Phase is the lifecycle stage of a game session. There is no terminal
// phase; abandoned sessions are removed by the registry sweep.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhasePlaying   Phase = "playing"
	PhaseAnswering Phase = "answering"
	PhaseFeedback  Phase = "feedback"
)
