package workflows

import (
	"context"
	"fmt"
	"log"

	"github.com/onepass-ch/onepass-sub008/internal/core/ports"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
)

// IssuanceActivities holds the activity implementations for the issuance
// workflow.
type IssuanceActivities struct {
	Passes   *usecases.PassService
	Notifier ports.NotificationService
}

// IssuePass signs and persists a pass for the user and returns it with the
// rendered token.
func (a *IssuanceActivities) IssuePass(ctx context.Context, userID string) (*IssuanceResult, error) {
	p, err := a.Passes.Issue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("issue pass: %w", err)
	}
	return &IssuanceResult{UID: p.UID, Token: a.Passes.Token(p)}, nil
}

// DeliverPass pushes the fresh pass to the user's device.
func (a *IssuanceActivities) DeliverPass(ctx context.Context, userID, token string) error {
	if a.Notifier == nil {
		log.Printf("PUSH (no notifier) → user=%s pass delivered", userID)
		return nil
	}
	return a.Notifier.SendPush(ctx, userID, "Your pass is ready",
		"Open the app to show your entry pass at the door.")
}

// RevokePass rolls back an issued pass (saga compensation).
func (a *IssuanceActivities) RevokePass(ctx context.Context, uid string) error {
	if err := a.Passes.Revoke(ctx, uid); err != nil {
		return fmt.Errorf("revoke pass %s: %w", uid, err)
	}
	log.Printf("Pass %s revoked (issuance rollback)", uid)
	return nil
}
