package services

import "errors"

var (
	// ErrInvalidRoomCode is returned when a room code does not match any
	// live session.
	ErrInvalidRoomCode = errors.New("invalid room code")

	// ErrInvalidVideoURL is returned when no video ID can be extracted
	// from the URL supplied at room creation.
	ErrInvalidVideoURL = errors.New("invalid video URL")

	// ErrContentUnavailable is returned when the external transcript
	// source cannot be reached or has no captions for the video.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrOracleFailure is returned when the question oracle call fails;
	// no partial result is ever surfaced.
	ErrOracleFailure = errors.New("question oracle failure")

	// ErrLateSubmission is returned when an answer arrives after the
	// feedback gate has closed for the current question.
	ErrLateSubmission = errors.New("answer arrived after feedback was shown")

	// ErrUnknownPlayer is returned when a player ID does not exist in the
	// session roster.
	ErrUnknownPlayer = errors.New("unknown player")
)
