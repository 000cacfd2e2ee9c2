package runtime

import (
	"context"

	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

// Hooks lets a service built on a runtime react to lifecycle and task
// events. Embed BaseHooks to implement only the methods you need.
type Hooks interface {
	OnInitialize(ctx context.Context) error
	OnShutdown(ctx context.Context) error
	OnTaskStart(ctx context.Context, task *Task)
	OnTaskSuccess(ctx context.Context, task *Task, result any)
	OnTaskFailure(ctx context.Context, task *Task, err error)
	OnSystemAlert(ctx context.Context, env *messaging.Envelope)
}

// BaseHooks implements Hooks with no-ops.
type BaseHooks struct{}

func (BaseHooks) OnInitialize(ctx context.Context) error                    { return nil }
func (BaseHooks) OnShutdown(ctx context.Context) error                      { return nil }
func (BaseHooks) OnTaskStart(ctx context.Context, task *Task)               {}
func (BaseHooks) OnTaskSuccess(ctx context.Context, task *Task, result any) {}
func (BaseHooks) OnTaskFailure(ctx context.Context, task *Task, err error)  {}
func (BaseHooks) OnSystemAlert(ctx context.Context, env *messaging.Envelope) {}

// Authorizer decides whether sender may run a task that requires the given
// permissions. A non-nil error denies the task.
type Authorizer interface {
	Authorize(ctx context.Context, sender, taskType string, permissions []string) error
}

// AllowAll grants every permission.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context, sender, taskType string, permissions []string) error {
	return nil
}

// StaticAuthorizer grants each sender a fixed permission set.
type StaticAuthorizer map[string][]string

func (a StaticAuthorizer) Authorize(ctx context.Context, sender, taskType string, permissions []string) error {
	granted := make(map[string]bool, len(a[sender]))
	for _, p := range a[sender] {
		granted[p] = true
	}
	for _, p := range permissions {
		if !granted[p] {
			return &PermissionError{Sender: sender, Permission: p}
		}
	}
	return nil
}
