package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_ErrorIncludesCodeAndMessage(t *testing.T) {
	err := NewTaskNotFoundError("task-1")

	want := "[TASK_NOT_FOUND] Task not found: task-1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAPIError_UnwrapsThroughFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("failed to create task: %w", NewForbiddenError())

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find *APIError in wrapped error")
	}
	if apiErr.Code != ErrCodeForbidden {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeForbidden)
	}
}

func TestPriority_Valid(t *testing.T) {
	tests := []struct {
		priority Priority
		want     bool
	}{
		{PriorityLow, true},
		{PriorityMedium, true},
		{PriorityHigh, true},
		{PriorityCritical, true},
		{Priority("urgent"), false},
		{Priority(""), false},
	}

	for _, tt := range tests {
		if got := tt.priority.Valid(); got != tt.want {
			t.Errorf("Priority(%q).Valid() = %v, want %v", tt.priority, got, tt.want)
		}
	}
}

func TestVisibility_Valid(t *testing.T) {
	if !VisibilityTeam.Valid() {
		t.Error("team should be valid")
	}
	if Visibility("secret").Valid() {
		t.Error("secret should not be valid")
	}
}

func TestRole_CanManage(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleOwner, true},
		{RoleAdmin, true},
		{RoleMember, false},
		{RoleViewer, false},
	}

	for _, tt := range tests {
		if got := tt.role.CanManage(); got != tt.want {
			t.Errorf("Role(%q).CanManage() = %v, want %v", tt.role, got, tt.want)
		}
	}
}
