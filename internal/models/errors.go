package models

import "errors"

// Sentinel errors for the failure modes the pipeline distinguishes.
// Callers classify with errors.Is and decide retry behavior from the
// class, never from message text.
var (
	// ErrDetected means the target challenged the session (captcha,
	// verification page, challenge overlay). Retried once with a fresh
	// session identity.
	ErrDetected = errors.New("bot challenge detected")

	// ErrTimeout means the response never stabilized within the target's
	// wait budget. Never retried; a slow target stays slow.
	ErrTimeout = errors.New("response wait timed out")

	// ErrExtraction means the page structure did not match the adapter's
	// selectors after an apparently successful submission.
	ErrExtraction = errors.New("response extraction failed")

	// ErrJudgeParse means the judge reply did not conform to the scoring
	// schema after all parse retries.
	ErrJudgeParse = errors.New("judge reply does not match scoring schema")

	// ErrJudgeUnavailable means the judge endpoint could not be reached
	// or persistently refused the request.
	ErrJudgeUnavailable = errors.New("judge unavailable")

	// ErrCalibrationGate means a judge failed the gold-set quality gate
	// and is excluded from comparative reporting.
	ErrCalibrationGate = errors.New("judge failed calibration gate")
)
