package service

import (
	"context"

	"auditgelap-service/internal/ai"
)

// Model is the generative backend the services talk to. *ai.Client satisfies
// it; tests substitute a canned implementation.
type Model interface {
	GenerateAudit(ctx context.Context, in ai.AuditInput) (*ai.AuditOutput, error)
	VerifyExecution(ctx context.Context, in ai.VerifyExecutionInput) (*ai.VerifyExecutionOutput, error)
	AcknowledgeExecution(ctx context.Context, in ai.AcknowledgeInput) (*ai.AcknowledgeOutput, error)
	GenerateWeeklyRoast(ctx context.Context, in ai.WeeklyRoastInput) (*ai.WeeklyRoastOutput, error)
}
