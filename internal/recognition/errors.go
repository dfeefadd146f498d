package recognition

import "errors"

var (
	// ErrLogNotFound is returned when a recognition log ID does not exist.
	ErrLogNotFound = errors.New("recognition record not found")

	// ErrModelNotFound is returned when a model version ID does not exist.
	ErrModelNotFound = errors.New("model version not found")

	// ErrModelExists is returned when task, name and version are already registered.
	ErrModelExists = errors.New("model version already registered")

	// ErrInvalidTask is returned for an unknown model task.
	ErrInvalidTask = errors.New("invalid model task")

	// ErrEmptyImage is returned when the upload has no bytes.
	ErrEmptyImage = errors.New("image is empty")

	// ErrImageTooLarge is returned when the upload exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("image exceeds 10 MB")

	// ErrRecognizerFailed wraps errors from the external recognizer.
	ErrRecognizerFailed = errors.New("recognizer failed")
)
