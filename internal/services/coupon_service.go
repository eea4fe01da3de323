package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput signals the caller provided invalid data.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates no coupon exists under the given code.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponInactive indicates the coupon has been switched off by an administrator.
	ErrCouponInactive = errors.New("coupon: inactive")
	// ErrCouponExpired indicates the coupon's expiry date has passed.
	ErrCouponExpired = errors.New("coupon: expired")
	// ErrCouponBelowMinSpend indicates the order subtotal is under the coupon's floor.
	ErrCouponBelowMinSpend = errors.New("coupon: below minimum spend")
	// ErrCouponAlreadyUsed indicates the customer has redeemed this coupon before.
	ErrCouponAlreadyUsed = errors.New("coupon: already used")
)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons    repositories.CouponRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons    repositories.CouponRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCouponService wires dependencies into a concrete CouponService implementation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &couponService{
		coupons:    deps.Coupons,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Validate performs the read-only eligibility check. It has no side effects and
// may be called repeatedly without consuming the coupon.
func (s *couponService) Validate(ctx context.Context, cmd CouponValidateCommand) (CouponValidation, error) {
	code, email, err := normalizeCouponInput(cmd.Code, cmd.Email, cmd.Subtotal)
	if err != nil {
		return CouponValidation{}, err
	}

	coupon, err := s.findCoupon(ctx, code)
	if err != nil {
		return CouponValidation{}, err
	}

	return s.checkEligibility(coupon, email, cmd.Subtotal)
}

// Redeem consumes the coupon for the given customer. The eligibility check and
// the usedBy append run in one transaction so that two concurrent checkouts
// cannot both burn the same coupon for the same email.
func (s *couponService) Redeem(ctx context.Context, cmd CouponRedeemCommand) (CouponValidation, error) {
	code, email, err := normalizeCouponInput(cmd.Code, cmd.Email, cmd.Subtotal)
	if err != nil {
		return CouponValidation{}, err
	}

	now := s.clock()
	var validation CouponValidation

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		coupon, err := s.findCoupon(txCtx, code)
		if err != nil {
			return err
		}
		validation, err = s.checkEligibility(coupon, email, cmd.Subtotal)
		if err != nil {
			return err
		}
		return s.mapRepositoryError(s.coupons.AppendUsedBy(txCtx, code, email, now))
	})
	if err != nil {
		return CouponValidation{}, err
	}

	s.logger(ctx, "coupon.redeemed", map[string]any{
		"code":     code,
		"discount": validation.Discount,
	})
	return validation, nil
}

func (s *couponService) UpsertCoupon(ctx context.Context, cmd UpsertCouponCommand) (domain.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return domain.Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	discountType, ok := domain.ParseDiscountType(string(cmd.DiscountType))
	if !ok {
		return domain.Coupon{}, fmt.Errorf("%w: unknown discount type %q", ErrCouponInvalidInput, cmd.DiscountType)
	}
	if cmd.Value <= 0 {
		return domain.Coupon{}, fmt.Errorf("%w: value must be positive", ErrCouponInvalidInput)
	}
	if discountType == domain.DiscountTypePercentage && cmd.Value > 100 {
		return domain.Coupon{}, fmt.Errorf("%w: percentage value must not exceed 100", ErrCouponInvalidInput)
	}
	if cmd.MinSpend < 0 {
		return domain.Coupon{}, fmt.Errorf("%w: minimum spend must not be negative", ErrCouponInvalidInput)
	}

	now := s.clock()
	coupon := domain.Coupon{
		ID:           code,
		Code:         code,
		DiscountType: discountType,
		Value:        cmd.Value,
		MinSpend:     cmd.MinSpend,
		IsActive:     cmd.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cmd.ExpiresAt != nil {
		expires := cmd.ExpiresAt.UTC()
		coupon.ExpiresAt = &expires
	}

	// Preserve redemption history and the original creation time on edits. The
	// history read and the document write share one transaction so a redemption
	// landing in between cannot be overwritten with a stale usedBy list.
	var saved domain.Coupon
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		upserted := coupon
		existing, err := s.findCoupon(txCtx, code)
		if err == nil {
			upserted.UsedBy = existing.UsedBy
			upserted.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ErrCouponNotFound) {
			return err
		}
		if err := s.mapRepositoryError(s.coupons.Upsert(txCtx, upserted)); err != nil {
			return err
		}
		saved = upserted
		return nil
	})
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logger(ctx, "coupon.upserted", map[string]any{"code": code})
	return saved, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, code string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if err := s.mapRepositoryError(s.coupons.Delete(ctx, normalized)); err != nil {
		return err
	}
	s.logger(ctx, "coupon.deleted", map[string]any{"code": normalized})
	return nil
}

func (s *couponService) ListCoupons(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	page, err := s.coupons.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *couponService) findCoupon(ctx context.Context, code string) (domain.Coupon, error) {
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return domain.Coupon{}, s.mapRepositoryError(err)
	}
	return coupon, nil
}

// checkEligibility runs the short-circuit validation chain: active, unexpired,
// minimum spend, then per-email redemption history. The first failing check wins.
func (s *couponService) checkEligibility(coupon domain.Coupon, email string, subtotal int64) (CouponValidation, error) {
	if !coupon.IsActive {
		return CouponValidation{}, fmt.Errorf("%w: %s", ErrCouponInactive, coupon.Code)
	}
	if coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(s.clock()) {
		return CouponValidation{}, fmt.Errorf("%w: %s", ErrCouponExpired, coupon.Code)
	}
	if coupon.MinSpend > 0 && subtotal < coupon.MinSpend {
		return CouponValidation{}, fmt.Errorf("%w: subtotal %d is under %d", ErrCouponBelowMinSpend, subtotal, coupon.MinSpend)
	}
	for _, used := range coupon.UsedBy {
		if strings.EqualFold(strings.TrimSpace(used), email) {
			return CouponValidation{}, fmt.Errorf("%w: %s", ErrCouponAlreadyUsed, coupon.Code)
		}
	}

	return CouponValidation{
		Code:         coupon.Code,
		DiscountType: coupon.DiscountType,
		Value:        coupon.Value,
		Discount:     computeDiscount(coupon, subtotal),
		Message:      "coupon applied",
	}, nil
}

// computeDiscount derives the discount amount server-side. The result is
// clamped to the subtotal so a discount can never produce a negative total.
func computeDiscount(coupon domain.Coupon, subtotal int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		discount = subtotal * coupon.Value / 100
	case domain.DiscountTypeFixed:
		discount = coupon.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func normalizeCouponInput(code string, email string, subtotal int64) (string, string, error) {
	normalizedCode := strings.ToUpper(strings.TrimSpace(code))
	if normalizedCode == "" {
		return "", "", fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" {
		return "", "", fmt.Errorf("%w: email is required", ErrCouponInvalidInput)
	}
	if subtotal < 0 {
		return "", "", fmt.Errorf("%w: subtotal must not be negative", ErrCouponInvalidInput)
	}
	return normalizedCode, normalizedEmail, nil
}

func (s *couponService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("coupon: repository unavailable: %w", err)
		}
	}

	return err
}
