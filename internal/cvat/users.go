package cvat

import (
	"context"
	"fmt"
)

// ListMemberships returns the members of the client's organization with
// their roles.
func (c *Client) ListMemberships(ctx context.Context) ([]Membership, error) {
	members, err := listAll[Membership](ctx, c, "/api/memberships", c.orgQuery(), membershipPageSize)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return members, nil
}

// Self returns the account the API key belongs to.
func (c *Client) Self(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, "/api/users/self", nil, 0, &u); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &u, nil
}
