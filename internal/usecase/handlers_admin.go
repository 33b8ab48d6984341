package usecase

import (
	"context"
	"fmt"

	"github.com/i2y/misperer/internal/domain"
)

type objectRefArgs struct {
	ObjectID string `json:"object_id"`
}

func (h *toolHandlers) deleteObject(ctx context.Context, args objectRefArgs) (domain.Result, error) {
	if _, err := h.client.DeleteObject(ctx, args.ObjectID); err != nil {
		return domain.Result{}, fmt.Errorf("delete object %s: %w", args.ObjectID, err)
	}
	return domain.TextResult(fmt.Sprintf("Object %s deleted", args.ObjectID)), nil
}

type tagRefArgs struct {
	TagID string `json:"tag_id"`
}

func (h *toolHandlers) deleteTag(ctx context.Context, args tagRefArgs) (domain.Result, error) {
	if _, err := h.client.DeleteTag(ctx, args.TagID); err != nil {
		return domain.Result{}, fmt.Errorf("delete tag %s: %w", args.TagID, err)
	}
	return domain.TextResult(fmt.Sprintf("Tag %s deleted", args.TagID)), nil
}

type addUserArgs struct {
	Email  string `json:"email"`
	OrgID  string `json:"org_id"`
	RoleID string `json:"role_id"`
}

func (h *toolHandlers) addUser(ctx context.Context, args addUserArgs) (domain.Result, error) {
	raw, err := h.client.AddUser(ctx, domain.User{
		Email:  args.Email,
		OrgID:  domain.ID(args.OrgID),
		RoleID: domain.ID(args.RoleID),
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("add user %s: %w", args.Email, err)
	}
	return rawResult(raw), nil
}

type userRefArgs struct {
	UserID string `json:"user_id"`
}

func (h *toolHandlers) deleteUser(ctx context.Context, args userRefArgs) (domain.Result, error) {
	if _, err := h.client.DeleteUser(ctx, args.UserID); err != nil {
		return domain.Result{}, fmt.Errorf("delete user %s: %w", args.UserID, err)
	}
	return domain.TextResult(fmt.Sprintf("User %s deleted", args.UserID)), nil
}

type editUserArgs struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	OrgID    string `json:"org_id"`
	RoleID   string `json:"role_id"`
	Disabled *bool  `json:"disabled"`
}

func (h *toolHandlers) editUser(ctx context.Context, args editUserArgs) (domain.Result, error) {
	raw, err := h.client.EditUser(ctx, args.UserID, domain.User{
		Email:    args.Email,
		OrgID:    domain.ID(args.OrgID),
		RoleID:   domain.ID(args.RoleID),
		Disabled: args.Disabled,
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("edit user %s: %w", args.UserID, err)
	}
	return rawResult(raw), nil
}
