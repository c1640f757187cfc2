// Package application 净值服务的用例层。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/nav/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/logging"
)

// RecordMarkRequest 记录净值标记请求。
type RecordMarkRequest struct {
	FundID      string `json:"fund_id" binding:"required"`
	CalcDate    string `json:"calc_date" binding:"required"`
	NAVPerShare string `json:"nav_per_share" binding:"required"`
	TotalShares string `json:"total_shares" binding:"required"`
}

// NAVService 净值应用服务，同时是 domain.Provider 的实现。
type NAVService struct {
	repo  domain.NAVRepository
	cache domain.NAVReadCache // 可为 nil，此时直读仓储
}

// NewNAVService 创建净值应用服务。
func NewNAVService(repo domain.NAVRepository, cache domain.NAVReadCache) *NAVService {
	return &NAVService{repo: repo, cache: cache}
}

// RecordMark 记录一条净值标记，(基金, 计算日) 幂等。
func (s *NAVService) RecordMark(ctx context.Context, req *RecordMarkRequest) (*domain.NAVMark, error) {
	calcDate, err := time.Parse("2006-01-02", req.CalcDate)
	if err != nil {
		return nil, finerrors.Validationf("invalid calc_date %q", req.CalcDate)
	}
	navPerShare, err := decimal.NewFromString(req.NAVPerShare)
	if err != nil || !navPerShare.IsPositive() {
		return nil, finerrors.Validationf("invalid nav_per_share %q", req.NAVPerShare)
	}
	totalShares, err := decimal.NewFromString(req.TotalShares)
	if err != nil || totalShares.IsNegative() {
		return nil, finerrors.Validationf("invalid total_shares %q", req.TotalShares)
	}

	mark := &domain.NAVMark{
		FundID:      req.FundID,
		CalcDate:    period.Day(calcDate),
		NAVPerShare: navPerShare,
		TotalShares: totalShares,
	}
	if err := s.repo.Save(ctx, mark); err != nil {
		return nil, fmt.Errorf("failed to save nav mark: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, req.FundID); err != nil {
			logging.Error(ctx, "nav cache invalidation failed", "fund_id", req.FundID, "error", err)
		}
	}

	logging.Info(ctx, "nav mark recorded",
		"fund_id", req.FundID, "calc_date", mark.CalcDate.Format("2006-01-02"), "nav_per_share", navPerShare.String())
	return mark, nil
}

// NAVAsOf 实现 domain.Provider。
// 返回计算日不晚于 cutoff 的最近净值标记；缺失时返回 PreconditionFailed，
// 绝不退化为陈旧值或零净值。
func (s *NAVService) NAVAsOf(ctx context.Context, fundID string, cutoff time.Time) (*domain.NAVMark, error) {
	cutoff = period.Day(cutoff)

	if s.cache != nil {
		if mark, err := s.cache.Get(ctx, fundID, cutoff); err != nil {
			logging.Error(ctx, "nav cache read failed", "fund_id", fundID, "error", err)
		} else if mark != nil {
			return mark, nil
		}
	}

	mark, err := s.repo.LatestAsOf(ctx, fundID, cutoff)
	if err != nil {
		return nil, err
	}
	if mark == nil {
		return nil, finerrors.Preconditionf("no nav mark for fund %s at or before %s",
			fundID, cutoff.Format("2006-01-02"))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, fundID, cutoff, mark); err != nil {
			logging.Error(ctx, "nav cache write failed", "fund_id", fundID, "error", err)
		}
	}
	return mark, nil
}

// History 返回基金净值历史。
func (s *NAVService) History(ctx context.Context, fundID string, limit int) ([]*domain.NAVMark, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByFund(ctx, fundID, limit)
}
