package runtime

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrShutdown       = errors.New("runtime is shut down")
	ErrNotInitialized = errors.New("runtime not initialized")
)

// Failure codes carried in TASK_FAIL payloads under "code".
const (
	CodeNotSupported    = "not_supported"
	CodeForbidden       = "forbidden"
	CodeExecutionFailed = "execution_failed"
)

// TimeoutError is returned by Request when no correlated response arrives in
// time.
type TimeoutError struct {
	RequestID string
	Recipient string
	TaskType  string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s to %s (%s) timed out after %v", e.RequestID, e.Recipient, e.TaskType, e.Timeout)
}

// TaskExecutionError carries the failure message of a remote task handler.
type TaskExecutionError struct {
	AgentID  string
	TaskType string
	Code     string
	Message  string
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed on %s: %s", e.TaskType, e.AgentID, e.Message)
}

// TaskNotSupportedError means the recipient has no handler for the task type.
type TaskNotSupportedError struct {
	AgentID  string
	TaskType string
}

func (e *TaskNotSupportedError) Error() string {
	return fmt.Sprintf("task type not supported by %s: %s", e.AgentID, e.TaskType)
}

// PermissionError is returned by an Authorizer to deny a task.
type PermissionError struct {
	Sender     string
	Permission string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s lacks permission %s", e.Sender, e.Permission)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
