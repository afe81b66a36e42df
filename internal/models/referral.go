package models

// NoActivePlan - название плана для реферала без активного депозита.
const NoActivePlan = "No plan active"

// Причины усечения дерева рефералов.
const (
	TruncatedMaxDepth = "max_depth"
	TruncatedMaxNodes = "max_nodes"
	TruncatedCycle    = "cycle_detected"
)

// TreeNode - узел дерева рефералов.
type TreeNode struct {
	ID           string      `json:"id"`
	UserName     string      `json:"userName"`
	Email        string      `json:"email"`
	ReferralLink string      `json:"referralLink"`
	IsActive     bool        `json:"isActive"`
	PlanName     string      `json:"planName"`
	ReferralCode string      `json:"referralCode"`
	ReferredBy   string      `json:"referredBy"`
	Children     []*TreeNode `json:"children"`
}

// ReferralTree - полное дерево рефералов с агрегированными счётчиками по всем уровням.
type ReferralTree struct {
	Tree              []*TreeNode `json:"tree"`
	TotalReferrals    int         `json:"totalReferrals"`
	ActiveReferrals   int         `json:"activeReferrals"`
	InactiveReferrals int         `json:"inactiveReferrals"`
	Truncated         bool        `json:"truncated"`
	TruncatedReason   string      `json:"truncatedReason,omitempty"`
}

// Network - пользователь вместе с деревом его рефералов.
type Network struct {
	User *User `json:"user"`
	*ReferralTree
}
