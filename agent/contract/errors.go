package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrDependency      = errors.New("dependency failed")
	ErrNotFound        = errors.New("not found")
	ErrParse           = errors.New("payload parse failed")
	ErrToolLoopBudget  = errors.New("tool loop exceeded round-trip budget")
)
