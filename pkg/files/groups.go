package files

import (
	"context"
	"fmt"
	"strings"
)

// ListGroups returns one page of groups.
func (c *Client) ListGroups(ctx context.Context, opts *GroupListOptions) (*GroupListResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &GroupListOptions{}
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	return c.backend.ListGroups(ctx, opts)
}

// CreateGroup creates a new group.
func (c *Client) CreateGroup(ctx context.Context, name string, isPublic bool) (*Group, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidArgument)
	}
	return c.backend.CreateGroup(ctx, name, isPublic)
}

// GetGroup returns a single group.
func (c *Client) GetGroup(ctx context.Context, id string) (*Group, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	id, err := requireID("group id", id)
	if err != nil {
		return nil, err
	}
	return c.backend.GetGroup(ctx, id)
}

// DeleteGroup removes a group. Files in the group are kept.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	id, err := requireID("group id", id)
	if err != nil {
		return err
	}
	return c.backend.DeleteGroup(ctx, id)
}

// AddToGroup assigns a file to a group.
func (c *Client) AddToGroup(ctx context.Context, groupID, fileID string) error {
	groupID, fileID, err := c.groupMembership(groupID, fileID)
	if err != nil {
		return err
	}
	return c.backend.AddToGroup(ctx, groupID, fileID)
}

// RemoveFromGroup detaches a file from a group.
func (c *Client) RemoveFromGroup(ctx context.Context, groupID, fileID string) error {
	groupID, fileID, err := c.groupMembership(groupID, fileID)
	if err != nil {
		return err
	}
	return c.backend.RemoveFromGroup(ctx, groupID, fileID)
}

func (c *Client) groupMembership(groupID, fileID string) (string, string, error) {
	if err := c.ready(); err != nil {
		return "", "", err
	}
	groupID, err := requireID("group id", groupID)
	if err != nil {
		return "", "", err
	}
	fileID, err = requireID("file id", fileID)
	if err != nil {
		return "", "", err
	}
	return groupID, fileID, nil
}
