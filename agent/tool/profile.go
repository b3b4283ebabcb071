package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// UserLookup is the slice of the persistence gateway the profile tool reads.
type UserLookup interface {
	FindUserByEmail(ctx context.Context, email string) (*persistence.User, error)
}

func (c *Catalog) executeProfile(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	email, err := stringArg(args, "email")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Result: "No email provided."}, nil
	}
	if c.users == nil {
		return contractx.ToolResult{Tool: tool, Error: "user profiles are unavailable"}, nil
	}

	u, err := c.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return contractx.ToolResult{Tool: tool, Result: fmt.Sprintf("No profile found for %s.", email)}, nil
	case err != nil:
		return contractx.ToolResult{}, fmt.Errorf("lookup profile: %w", err)
	}
	return contractx.ToolResult{Tool: tool, Result: FormatProfile(u)}, nil
}

func FormatProfile(u *persistence.User) string {
	name := ""
	if u.CurrentSession != nil {
		name = u.CurrentSession.Collected[statex.FieldName]
	}
	return fmt.Sprintf("Name: %s\nEmail: %s\nRecent summary: %s", name, u.Email, u.RecentSummary)
}
