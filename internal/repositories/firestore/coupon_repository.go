package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
)

const (
	couponsCollection     = "coupons"
	defaultCouponPageSize = 20
	maxCouponPageSize     = 100
)

type couponDocument struct {
	Code         string     `firestore:"code"`
	DiscountType string     `firestore:"discountType"`
	Value        int64      `firestore:"value"`
	MinSpend     int64      `firestore:"minSpend"`
	ExpiresAt    *time.Time `firestore:"expiresAt,omitempty"`
	IsActive     bool       `firestore:"isActive"`
	UsedBy       []string   `firestore:"usedBy"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

// CouponRepository implements repositories.CouponRepository backed by Firestore.
// Documents are keyed by the normalized (upper-case) coupon code so that
// redemption can address a coupon directly inside a transaction.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil)
	return &CouponRepository{provider: provider, coupons: base}, nil
}

// FindByCode loads a coupon by normalized code, reading through the active transaction when present.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := normalizeCouponCode(code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon find: code is required")
	}

	ref, err := r.coupons.DocumentRef(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Coupon{}, pfirestore.WrapError("coupons.find", err)
		}
		var doc couponDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Coupon{}, fmt.Errorf("decode coupon %s: %w", id, err)
		}
		return doc.toDomain(id), nil
	}

	found, err := r.coupons.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	return found.Data.toDomain(found.ID), nil
}

// Upsert writes the coupon under its normalized code, writing through the
// active transaction when present.
func (r *CouponRepository) Upsert(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	id := normalizeCouponCode(coupon.Code)
	if id == "" {
		return errors.New("coupon upsert: code is required")
	}

	doc := newCouponDocument(coupon)
	doc.Code = id

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		ref, err := r.coupons.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("coupons.upsert", tx.Set(ref, doc))
	}

	if _, err := r.coupons.Set(ctx, id, doc); err != nil {
		return err
	}
	return nil
}

// Delete removes the coupon with the given code.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	id := normalizeCouponCode(code)
	if id == "" {
		return errors.New("coupon delete: code is required")
	}
	return r.coupons.Delete(ctx, id)
}

// List returns coupons ordered by code with cursor paging.
func (r *CouponRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("coupon repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = defaultCouponPageSize
	}
	if pageSize > maxCouponPageSize {
		pageSize = maxCouponPageSize
	}

	startAfter := ""
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, fmt.Errorf("coupons.list: invalid page token: %w", err)
		}
		startAfter = string(decoded)
	}

	docs, err := r.coupons.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	page := domain.CursorPage[domain.Coupon]{}
	for i, doc := range docs {
		if i == pageSize {
			page.NextPageToken = base64.RawURLEncoding.EncodeToString([]byte(docs[i-1].ID))
			break
		}
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

// AppendUsedBy records a redemption by adding the email to the coupon's usedBy
// list. The write is a set-union so repeated appends of the same email cannot
// duplicate entries; membership must be checked by the caller in the same
// transaction before writing.
func (r *CouponRepository) AppendUsedBy(ctx context.Context, code string, email string, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	id := normalizeCouponCode(code)
	if id == "" {
		return errors.New("coupon redeem: code is required")
	}
	addr := strings.ToLower(strings.TrimSpace(email))
	if addr == "" {
		return errors.New("coupon redeem: email is required")
	}

	ref, err := r.coupons.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "usedBy", Value: firestore.ArrayUnion(addr)},
		{Path: "updatedAt", Value: now.UTC()},
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return pfirestore.WrapError("coupons.appendUsedBy", tx.Update(ref, updates))
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return pfirestore.WrapError("coupons.appendUsedBy", err)
	}
	return nil
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newCouponDocument(coupon domain.Coupon) couponDocument {
	doc := couponDocument{
		Code:         coupon.Code,
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		MinSpend:     coupon.MinSpend,
		IsActive:     coupon.IsActive,
		UsedBy:       append([]string(nil), coupon.UsedBy...),
		CreatedAt:    coupon.CreatedAt.UTC(),
		UpdatedAt:    coupon.UpdatedAt.UTC(),
	}
	if doc.UsedBy == nil {
		doc.UsedBy = []string{}
	}
	if coupon.ExpiresAt != nil {
		expires := coupon.ExpiresAt.UTC()
		doc.ExpiresAt = &expires
	}
	return doc
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	coupon := domain.Coupon{
		ID:           id,
		Code:         d.Code,
		DiscountType: domain.DiscountType(d.DiscountType),
		Value:        d.Value,
		MinSpend:     d.MinSpend,
		IsActive:     d.IsActive,
		UsedBy:       append([]string(nil), d.UsedBy...),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if coupon.Code == "" {
		coupon.Code = id
	}
	if d.ExpiresAt != nil {
		expires := *d.ExpiresAt
		coupon.ExpiresAt = &expires
	}
	return coupon
}
