// Package services строит дерево рефералов и управляет связями между пригласившими.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bioopay/backend/internal/models"
)

// Repository описывает доступ к пользователям и депозитам, нужный для построения дерева.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	LockUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	// ListByReferredBy возвращает прямых рефералов в порядке регистрации.
	ListByReferredBy(ctx context.Context, code string) ([]*models.User, error)
	UpdateReferredBy(ctx context.Context, userID, code string) error

	// FindActiveDepositByUser возвращает активный депозит или ErrNotFound.
	FindActiveDepositByUser(ctx context.Context, userID string) (*models.Deposit, error)
}

// Recorder принимает метрики построения дерева.
type Recorder interface {
	TreeBuilt(result string, nodes int, took time.Duration)
}

// Options ограничения построения дерева.
type Options struct {
	MaxDepth    int
	MaxNodes    int
	Concurrency int
	Timeout     time.Duration
}

// ReferralService строит дерево рефералов.
type ReferralService struct {
	repo    Repository
	metrics Recorder
	log     *slog.Logger
	opts    Options
}

// NewReferralService создает новый экземпляр ReferralService.
func NewReferralService(repo Repository, metrics Recorder, log *slog.Logger, opts Options) *ReferralService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &ReferralService{repo: repo, metrics: metrics, log: log, opts: opts}
}

type frontierItem struct {
	code string
	node *models.TreeNode // nil для корня
}

// BuildTree строит дерево всех прямых и косвенных рефералов кода rootCode.
//
// Обход идёт по уровням: дети всех узлов уровня и активные депозиты новых узлов запрашиваются
// параллельно с ограничением Concurrency. При достижении MaxDepth, MaxNodes или при повторном
// коде возвращается частичное дерево с Truncated = true. Ошибка хранилища прерывает построение.
func (s *ReferralService) BuildTree(ctx context.Context, rootCode string) (*models.ReferralTree, error) {
	const op = "services.referral.BuildTree"
	start := time.Now()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	rootCode = models.NormalizeReferralCode(rootCode)
	res := &models.ReferralTree{Tree: []*models.TreeNode{}}
	visited := map[string]struct{}{rootCode: {}}
	frontier := []frontierItem{{code: rootCode}}
	nodes := 0
	full := false

	for depth := 1; len(frontier) > 0 && !full; depth++ {
		children, err := s.listChildren(ctx, frontier)
		if err != nil {
			s.metrics.TreeBuilt("failed", nodes, time.Since(start))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if depth > s.opts.MaxDepth {
			for _, c := range children {
				if len(c) > 0 {
					s.truncate(res, models.TruncatedMaxDepth, rootCode)
					break
				}
			}
			break
		}

		var next []frontierItem
	attach:
		for i, parent := range frontier {
			for _, u := range children[i] {
				code := models.NormalizeReferralCode(u.ReferralCode)
				if _, seen := visited[code]; seen {
					s.truncate(res, models.TruncatedCycle, rootCode)
					continue
				}
				if nodes >= s.opts.MaxNodes {
					s.truncate(res, models.TruncatedMaxNodes, rootCode)
					full = true
					break attach
				}
				visited[code] = struct{}{}
				nodes++

				node := &models.TreeNode{
					ID:           u.ID,
					UserName:     u.UserName,
					Email:        u.Email,
					ReferralLink: u.ReferralLink,
					PlanName:     models.NoActivePlan,
					ReferralCode: code,
					ReferredBy:   models.NormalizeReferralCode(u.ReferredBy),
					Children:     []*models.TreeNode{},
				}
				if parent.node == nil {
					res.Tree = append(res.Tree, node)
				} else {
					parent.node.Children = append(parent.node.Children, node)
				}
				next = append(next, frontierItem{code: code, node: node})
			}
		}

		if err := s.resolveActivity(ctx, next); err != nil {
			s.metrics.TreeBuilt("failed", nodes, time.Since(start))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		frontier = next
	}

	countNodes(res, res.Tree)

	result := "ok"
	if res.Truncated {
		result = "truncated"
	}
	s.metrics.TreeBuilt(result, res.TotalReferrals, time.Since(start))
	return res, nil
}

// listChildren параллельно запрашивает прямых рефералов каждого узла фронта.
// Результат i соответствует frontier[i] независимо от порядка завершения запросов.
func (s *ReferralService) listChildren(ctx context.Context, frontier []frontierItem) ([][]*models.User, error) {
	children := make([][]*models.User, len(frontier))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, item := range frontier {
		i, item := i, item
		g.Go(func() error {
			users, err := s.repo.ListByReferredBy(gctx, item.code)
			if err != nil {
				return err
			}
			children[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}

// resolveActivity отмечает узлы с активным депозитом и подставляет название плана.
func (s *ReferralService) resolveActivity(ctx context.Context, items []frontierItem) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			dep, err := s.repo.FindActiveDepositByUser(gctx, item.node.ID)
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			item.node.IsActive = true
			if dep.PlanName != "" {
				item.node.PlanName = dep.PlanName
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *ReferralService) truncate(res *models.ReferralTree, reason, rootCode string) {
	if res.Truncated {
		return
	}
	res.Truncated = true
	res.TruncatedReason = reason
	s.log.Warn("referral tree truncated",
		slog.String("op", "services.referral.BuildTree"),
		slog.String("root", rootCode),
		slog.String("reason", reason),
	)
}

func countNodes(res *models.ReferralTree, nodes []*models.TreeNode) {
	for _, n := range nodes {
		res.TotalReferrals++
		if n.IsActive {
			res.ActiveReferrals++
		} else {
			res.InactiveReferrals++
		}
		countNodes(res, n.Children)
	}
}

// TreeForUser строит дерево рефералов пользователя userID.
func (s *ReferralService) TreeForUser(ctx context.Context, userID string) (*models.ReferralTree, error) {
	const op = "services.referral.TreeForUser"

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.BuildTree(ctx, user.ReferralCode)
}

// NetworkByEmail возвращает пользователя с указанным email и его дерево рефералов.
func (s *ReferralService) NetworkByEmail(ctx context.Context, email string) (*models.Network, error) {
	const op = "services.referral.NetworkByEmail"

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tree, err := s.BuildTree(ctx, user.ReferralCode)
	if err != nil {
		return nil, err
	}
	return &models.Network{User: user, ReferralTree: tree}, nil
}

// ReassignReferrer назначает пользователю нового пригласившего по реферальному коду.
// Назначение, при котором пользователь стал бы собственным предком, отклоняется с ErrCycleDetected.
func (s *ReferralService) ReassignReferrer(ctx context.Context, userID, code string) (*models.User, error) {
	const op = "services.referral.ReassignReferrer"
	code = models.NormalizeReferralCode(code)

	var user *models.User
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.repo.LockUserByID(ctx, userID)
		if err != nil {
			return err
		}
		own := models.NormalizeReferralCode(user.ReferralCode)
		if code == own {
			return models.ErrCycleDetected
		}

		referrer, err := s.repo.GetUserByReferralCode(ctx, code)
		if err != nil {
			return err
		}

		// поднимаемся от нового пригласившего к корню и ищем пользователя среди предков
		seen := map[string]struct{}{code: {}}
		up := models.NormalizeReferralCode(referrer.ReferredBy)
		for up != "" {
			if up == own {
				return models.ErrCycleDetected
			}
			if _, ok := seen[up]; ok {
				break
			}
			seen[up] = struct{}{}

			ancestor, err := s.repo.GetUserByReferralCode(ctx, up)
			if errors.Is(err, models.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			up = models.NormalizeReferralCode(ancestor.ReferredBy)
		}

		if err := s.repo.UpdateReferredBy(ctx, user.ID, code); err != nil {
			return err
		}
		user.ReferredBy = code
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("referrer reassigned",
		slog.String("op", op),
		slog.String("user_id", user.ID),
		slog.String("referred_by", code),
	)
	return user, nil
}
