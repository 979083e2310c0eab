package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// IssuanceInput is the input for the pass issuance workflow.
type IssuanceInput struct {
	UserID   string
	TicketID string
}

// IssuanceResult reports what the workflow produced.
type IssuanceResult struct {
	UID   string
	Token string
}

// IssuanceWorkflow orchestrates signing and persisting a pass, then
// delivering it to the user. If delivery fails after retries, the pass is
// revoked again (saga compensation) so no live pass exists that the user
// never received.
func IssuanceWorkflow(ctx workflow.Context, input IssuanceInput) (*IssuanceResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting pass issuance workflow", "user", input.UserID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Sign and persist the pass
	var result IssuanceResult
	if err := workflow.ExecuteActivity(ctx, "IssuePass", input.UserID).Get(ctx, &result); err != nil {
		return nil, err
	}

	// Step 2: Deliver the pass to the user's device
	if err := workflow.ExecuteActivity(ctx, "DeliverPass", input.UserID, result.Token).Get(ctx, nil); err != nil {
		logger.Warn("pass delivery failed, revoking", "error", err)
		// Compensate: revoke the pass we just issued
		_ = workflow.ExecuteActivity(ctx, "RevokePass", result.UID).Get(ctx, nil)
		return nil, err
	}

	logger.Info("Pass issued and delivered", "uid", result.UID)
	return &result, nil
}
