// Package access はプロジェクト単位の認可判定を提供する。
package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/repository"
)

// Gate はユーザーがプロジェクトのメンバーかどうかを判定する。
// 読み取り専用で、判定結果はキャッシュしない。
type Gate struct {
	members repository.MembershipRepository
}

// NewGate はGateを生成する。
func NewGate(members repository.MembershipRepository) *Gate {
	return &Gate{members: members}
}

// RequireMember はユーザーのメンバーシップを返す。メンバーでない場合はFORBIDDENエラーを返す。
// 役割は問わない。
func (g *Gate) RequireMember(ctx context.Context, projectID, userID string) (*model.Membership, error) {
	membership, err := g.members.Find(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if membership == nil {
		return nil, model.NewForbiddenError()
	}
	return membership, nil
}

// RequireRole はメンバーシップの役割がallowedのいずれかであることを確認する。
// メンバーでない場合はFORBIDDEN、役割が足りない場合も同じコードで理由を区別したエラーを返す。
func (g *Gate) RequireRole(ctx context.Context, projectID, userID string, allowed ...model.Role) (*model.Membership, error) {
	membership, err := g.RequireMember(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	for _, role := range allowed {
		if membership.Role == role {
			return membership, nil
		}
	}

	required := model.RoleOwner
	if len(allowed) > 0 {
		required = allowed[len(allowed)-1]
	}
	return nil, model.NewInsufficientRoleError(string(required))
}
