package access

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/kanban/internal/model"
)

type mockMembershipRepo struct {
	findFn func(ctx context.Context, projectID, userID string) (*model.Membership, error)
}

func (m *mockMembershipRepo) Find(ctx context.Context, projectID, userID string) (*model.Membership, error) {
	if m.findFn != nil {
		return m.findFn(ctx, projectID, userID)
	}
	return nil, nil
}

func (m *mockMembershipRepo) Create(_ context.Context, _ *model.Membership) error { return nil }

func (m *mockMembershipRepo) ListByProject(_ context.Context, _ string) ([]model.MemberWithUser, error) {
	return nil, nil
}

func memberWithRole(role model.Role) *mockMembershipRepo {
	return &mockMembershipRepo{
		findFn: func(_ context.Context, projectID, userID string) (*model.Membership, error) {
			return &model.Membership{ID: "m1", ProjectID: projectID, UserID: userID, Role: role}, nil
		},
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
	return apiErr
}

func TestRequireMember_NonMemberIsForbidden(t *testing.T) {
	gate := NewGate(&mockMembershipRepo{})

	_, err := gate.RequireMember(context.Background(), "p1", "stranger")

	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
}

// どの役割のメンバーでも通過する
func TestRequireMember_AnyRolePasses(t *testing.T) {
	for _, role := range []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleMember, model.RoleViewer} {
		t.Run(string(role), func(t *testing.T) {
			gate := NewGate(memberWithRole(role))

			m, err := gate.RequireMember(context.Background(), "p1", "u1")
			if err != nil {
				t.Fatalf("RequireMember returned error: %v", err)
			}
			if m.Role != role {
				t.Errorf("Role = %q, want %q", m.Role, role)
			}
		})
	}
}

func TestRequireMember_RepositoryErrorIsNotForbidden(t *testing.T) {
	gate := NewGate(&mockMembershipRepo{
		findFn: func(_ context.Context, _, _ string) (*model.Membership, error) {
			return nil, errors.New("connection refused")
		},
	})

	_, err := gate.RequireMember(context.Background(), "p1", "u1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("infrastructure error should not be an APIError, got %v", apiErr)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		allowed []model.Role
		wantErr bool
	}{
		{"owner allowed", model.RoleOwner, []model.Role{model.RoleOwner}, false},
		{"admin allowed for manage", model.RoleAdmin, []model.Role{model.RoleOwner, model.RoleAdmin}, false},
		{"member rejected for manage", model.RoleMember, []model.Role{model.RoleOwner, model.RoleAdmin}, true},
		{"admin rejected for owner-only", model.RoleAdmin, []model.Role{model.RoleOwner}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(memberWithRole(tt.role))

			_, err := gate.RequireRole(context.Background(), "p1", "u1", tt.allowed...)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("RequireRole returned error: %v", err)
				}
				return
			}
			apiErr := assertAPIErrorCode(t, err, model.ErrCodeForbidden)
			if apiErr.Message == model.NewForbiddenError().Message {
				t.Error("insufficient role should be distinguishable from non-member")
			}
		})
	}
}
