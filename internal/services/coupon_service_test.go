package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
)

type stubCouponRepo struct {
	findFn   func(context.Context, string) (domain.Coupon, error)
	upsertFn func(context.Context, domain.Coupon) error
	deleteFn func(context.Context, string) error
	listFn   func(context.Context, domain.Pagination) (domain.CursorPage[domain.Coupon], error)
	appendFn func(context.Context, string, string, time.Time) error
}

func (s *stubCouponRepo) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if s.findFn != nil {
		return s.findFn(ctx, code)
	}
	return domain.Coupon{}, &repoError{notFound: true}
}

func (s *stubCouponRepo) Upsert(ctx context.Context, coupon domain.Coupon) error {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, coupon)
	}
	return nil
}

func (s *stubCouponRepo) Delete(ctx context.Context, code string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, code)
	}
	return nil
}

func (s *stubCouponRepo) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.CursorPage[domain.Coupon]{}, nil
}

func (s *stubCouponRepo) AppendUsedBy(ctx context.Context, code string, email string, now time.Time) error {
	if s.appendFn != nil {
		return s.appendFn(ctx, code, email, now)
	}
	return nil
}

func validTestCoupon() domain.Coupon {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Coupon{
		ID:           "SAVE10",
		Code:         "SAVE10",
		DiscountType: domain.DiscountTypePercentage,
		Value:        10,
		MinSpend:     10000,
		ExpiresAt:    &expires,
		IsActive:     true,
		UsedBy:       []string{"a@x.com"},
	}
}

func newCouponService(t *testing.T, repo *stubCouponRepo) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Coupons:    repo,
		UnitOfWork: &stubUnitOfWork{},
		Clock:      fixedClock(time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new coupon service: %v", err)
	}
	return svc
}

func TestValidateShortCircuitChain(t *testing.T) {
	expired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		coupon  func() (domain.Coupon, error)
		cmd     CouponValidateCommand
		wantErr error
	}{
		{
			name:    "not found",
			coupon:  func() (domain.Coupon, error) { return domain.Coupon{}, &repoError{notFound: true} },
			cmd:     CouponValidateCommand{Code: "NOPE", Email: "b@x.com", Subtotal: 50000},
			wantErr: ErrCouponNotFound,
		},
		{
			name: "inactive",
			coupon: func() (domain.Coupon, error) {
				coupon := validTestCoupon()
				coupon.IsActive = false
				return coupon, nil
			},
			cmd:     CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 50000},
			wantErr: ErrCouponInactive,
		},
		{
			name: "expired",
			coupon: func() (domain.Coupon, error) {
				coupon := validTestCoupon()
				coupon.ExpiresAt = &expired
				return coupon, nil
			},
			cmd:     CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 50000},
			wantErr: ErrCouponExpired,
		},
		{
			name:    "below minimum spend",
			coupon:  func() (domain.Coupon, error) { return validTestCoupon(), nil },
			cmd:     CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 9999},
			wantErr: ErrCouponBelowMinSpend,
		},
		{
			name:    "already used",
			coupon:  func() (domain.Coupon, error) { return validTestCoupon(), nil },
			cmd:     CouponValidateCommand{Code: "SAVE10", Email: "a@x.com", Subtotal: 50000},
			wantErr: ErrCouponAlreadyUsed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubCouponRepo{
				findFn: func(context.Context, string) (domain.Coupon, error) { return tc.coupon() },
			}
			svc := newCouponService(t, repo)

			_, err := svc.Validate(context.Background(), tc.cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateMinSpendBoundary(t *testing.T) {
	repo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) { return validTestCoupon(), nil },
	}
	svc := newCouponService(t, repo)

	if _, err := svc.Validate(context.Background(), CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 9999}); !errors.Is(err, ErrCouponBelowMinSpend) {
		t.Fatalf("expected rejection at 9999, got %v", err)
	}

	validation, err := svc.Validate(context.Background(), CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 10000})
	if err != nil {
		t.Fatalf("expected acceptance at 10000, got %v", err)
	}
	if validation.Discount != 1000 {
		t.Fatalf("expected discount 1000, got %d", validation.Discount)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	var appends int
	repo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) { return validTestCoupon(), nil },
		appendFn: func(context.Context, string, string, time.Time) error {
			appends++
			return nil
		},
	}
	svc := newCouponService(t, repo)
	cmd := CouponValidateCommand{Code: "save10", Email: "B@X.com", Subtotal: 50000}

	first, err := svc.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := svc.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validate not idempotent: %#v vs %#v", first, second)
	}
	if appends != 0 {
		t.Fatalf("validate must not consume the coupon, saw %d appends", appends)
	}
}

func TestValidateFixedDiscountClamp(t *testing.T) {
	repo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) {
			return domain.Coupon{
				Code:         "FLAT500",
				DiscountType: domain.DiscountTypeFixed,
				Value:        50000,
				IsActive:     true,
			}, nil
		},
	}
	svc := newCouponService(t, repo)

	validation, err := svc.Validate(context.Background(), CouponValidateCommand{Code: "FLAT500", Email: "b@x.com", Subtotal: 30000})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validation.Discount != 30000 {
		t.Fatalf("expected discount clamped to 30000, got %d", validation.Discount)
	}
}

func TestValidatePerEmailUsage(t *testing.T) {
	repo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) { return validTestCoupon(), nil },
	}
	svc := newCouponService(t, repo)

	if _, err := svc.Validate(context.Background(), CouponValidateCommand{Code: "SAVE10", Email: "a@x.com", Subtotal: 50000}); !errors.Is(err, ErrCouponAlreadyUsed) {
		t.Fatalf("expected ErrCouponAlreadyUsed for a@x.com, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), CouponValidateCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 50000}); err != nil {
		t.Fatalf("expected success for b@x.com, got %v", err)
	}
}

func TestRedeemAppendsUsedByOnce(t *testing.T) {
	coupon := validTestCoupon()
	var appended []string
	repo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) { return coupon, nil },
		appendFn: func(_ context.Context, code string, email string, _ time.Time) error {
			appended = append(appended, email)
			coupon.UsedBy = append(coupon.UsedBy, email)
			if code != "SAVE10" {
				t.Fatalf("unexpected code %s", code)
			}
			return nil
		},
	}
	svc := newCouponService(t, repo)

	validation, err := svc.Redeem(context.Background(), CouponRedeemCommand{Code: "save10", Email: "B@X.com", Subtotal: 50000})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if validation.Discount != 5000 {
		t.Fatalf("expected discount 5000, got %d", validation.Discount)
	}
	if len(appended) != 1 || appended[0] != "b@x.com" {
		t.Fatalf("expected one append for b@x.com, got %v", appended)
	}

	if _, err := svc.Redeem(context.Background(), CouponRedeemCommand{Code: "SAVE10", Email: "b@x.com", Subtotal: 50000}); !errors.Is(err, ErrCouponAlreadyUsed) {
		t.Fatalf("expected ErrCouponAlreadyUsed on second redeem, got %v", err)
	}
	if len(appended) != 1 {
		t.Fatalf("expected no further appends, got %v", appended)
	}
}

func TestUpsertCouponValidatesInput(t *testing.T) {
	svc := newCouponService(t, &stubCouponRepo{})

	cases := []UpsertCouponCommand{
		{Code: "", DiscountType: domain.DiscountTypeFixed, Value: 100},
		{Code: "X", DiscountType: "bogus", Value: 100},
		{Code: "X", DiscountType: domain.DiscountTypeFixed, Value: 0},
		{Code: "X", DiscountType: domain.DiscountTypePercentage, Value: 150},
		{Code: "X", DiscountType: domain.DiscountTypeFixed, Value: 100, MinSpend: -1},
	}
	for i, cmd := range cases {
		if _, err := svc.UpsertCoupon(context.Background(), cmd); !errors.Is(err, ErrCouponInvalidInput) {
			t.Fatalf("case %d: expected ErrCouponInvalidInput, got %v", i, err)
		}
	}
}

func TestUpsertCouponPreservesHistory(t *testing.T) {
	existing := validTestCoupon()
	existing.CreatedAt = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	var saved domain.Coupon
	repo := &stubCouponRepo{
		findFn:   func(context.Context, string) (domain.Coupon, error) { return existing, nil },
		upsertFn: func(_ context.Context, coupon domain.Coupon) error { saved = coupon; return nil },
	}
	svc := newCouponService(t, repo)

	result, err := svc.UpsertCoupon(context.Background(), UpsertCouponCommand{
		Code:         "save10",
		DiscountType: domain.DiscountTypePercentage,
		Value:        15,
		MinSpend:     5000,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if result.Code != "SAVE10" {
		t.Fatalf("expected normalized code, got %q", result.Code)
	}
	if !reflect.DeepEqual(saved.UsedBy, existing.UsedBy) {
		t.Fatalf("expected usedBy preserved, got %v", saved.UsedBy)
	}
	if !saved.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("expected createdAt preserved, got %v", saved.CreatedAt)
	}
	if saved.Value != 15 || saved.MinSpend != 5000 {
		t.Fatalf("unexpected saved coupon %#v", saved)
	}
}

func TestUpsertCouponKeepsConcurrentRedemption(t *testing.T) {
	stored := validTestCoupon()
	repo := &stubCouponRepo{
		findFn:   func(context.Context, string) (domain.Coupon, error) { return stored, nil },
		upsertFn: func(_ context.Context, coupon domain.Coupon) error { stored = coupon; return nil },
	}

	// Replays the transaction body after a redemption lands, the way a
	// serializable transaction retries when a concurrent write invalidates
	// its read set. The second pass must pick up the new usedBy entry.
	var attempts int
	unit := &stubUnitOfWork{
		runFn: func(ctx context.Context, fn func(context.Context) error) error {
			attempts++
			if err := fn(ctx); err != nil {
				return err
			}
			stored.UsedBy = append(append([]string(nil), stored.UsedBy...), "b@x.com")
			return fn(ctx)
		},
	}

	svc, err := NewCouponService(CouponServiceDeps{
		Coupons:    repo,
		UnitOfWork: unit,
		Clock:      fixedClock(time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new coupon service: %v", err)
	}

	result, err := svc.UpsertCoupon(context.Background(), UpsertCouponCommand{
		Code:         "save10",
		DiscountType: domain.DiscountTypePercentage,
		Value:        15,
		MinSpend:     5000,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected the upsert to run through the unit of work, saw %d runs", attempts)
	}
	if want := []string{"a@x.com", "b@x.com"}; !reflect.DeepEqual(stored.UsedBy, want) {
		t.Fatalf("redemption lost by admin edit: stored usedBy %v, want %v", stored.UsedBy, want)
	}
	if !reflect.DeepEqual(result.UsedBy, []string{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected result usedBy %v", result.UsedBy)
	}
	if stored.Value != 15 {
		t.Fatalf("expected edited value 15, got %d", stored.Value)
	}
}
