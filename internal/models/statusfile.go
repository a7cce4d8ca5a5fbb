package models

// StatusFileResult holds the result of writing the status artifact.
type StatusFileResult struct {
	Path    string
	Written bool
	Error   error
}
