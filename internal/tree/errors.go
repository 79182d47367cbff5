package tree

import "errors"

var (
	ErrNotFound            = errors.New("path not found")
	ErrNotADirectory       = errors.New("not a directory")
	ErrIsADirectory        = errors.New("is a directory")
	ErrDestinationConflict = errors.New("destination conflict")
	ErrCreateFailed        = errors.New("cannot create directory")
	ErrIOFailure           = errors.New("i/o failure")
	ErrDeleteFailed        = errors.New("delete failed")
)
