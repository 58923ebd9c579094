package main

import (
	"errors"

	"github.com/nhle/obligations/internal/importer"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
	"github.com/nhle/obligations/internal/tasks"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitConflict   = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// classify attaches an exit code to an error from the domain packages.
// Errors that already carry one keep it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	switch {
	case errors.As(err, &ce):
		return err
	case importer.IsConflictError(err):
		return withCode(exitConflict, err)
	case importer.IsMissingConfigError(err),
		errors.Is(err, importer.ErrNoRows),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, tasks.ErrInvalidTransition),
		errors.Is(err, model.ErrInvalidAnchor),
		errors.Is(err, model.ErrInvalidFrequency),
		errors.Is(err, model.ErrInvalidDepartment),
		errors.Is(err, model.ErrInvalidAudience),
		errors.Is(err, model.ErrInvalidPriority):
		return withCode(exitValidation, err)
	}
	return withCode(exitDB, err)
}
