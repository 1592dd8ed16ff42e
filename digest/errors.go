package digest

import "errors"

var (
	// ErrConfiguration means a token budget came out non-positive. It is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrGeneration wraps transport and timeout failures from a Generator.
	ErrGeneration = errors.New("generation error")

	// ErrParse wraps model output that is not a JSON object.
	ErrParse = errors.New("parse error")

	// ErrTranslation wraps Translator failures.
	ErrTranslation = errors.New("translation error")

	// ErrEmptyInput is returned when nothing is left to summarize after preprocessing.
	ErrEmptyInput = errors.New("empty input")
)
