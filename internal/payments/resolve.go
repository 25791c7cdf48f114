package payments

import "context"

// ResolveByPaymentIntentOrMetadata implements the PI-first-then-metadata-id
// lookup order used by payment_intent handlers.
func ResolveByPaymentIntentOrMetadata(ctx context.Context, repo Repository, paymentIntentID, metaPaymentID string) (*Payment, error) {
	if paymentIntentID != "" {
		p, err := repo.FindByPaymentIntentID(ctx, paymentIntentID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if metaPaymentID != "" {
		return repo.FindByID(ctx, metaPaymentID)
	}
	return nil, nil
}

// ResolveByChargeOrFallback implements the PI → charge → metadata-id lookup
// order used by charge handlers.
func ResolveByChargeOrFallback(ctx context.Context, repo Repository, paymentIntentID, chargeID, metaPaymentID string) (*Payment, error) {
	if paymentIntentID != "" {
		p, err := repo.FindByPaymentIntentID(ctx, paymentIntentID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if chargeID != "" {
		p, err := repo.FindByChargeID(ctx, chargeID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if metaPaymentID != "" {
		return repo.FindByID(ctx, metaPaymentID)
	}
	return nil, nil
}

// ResolveCheckoutTarget implements the session-id → metadata-id lookup order
// used by checkout handlers.
func ResolveCheckoutTarget(ctx context.Context, repo Repository, checkoutSessionID, metaPaymentID string) (*Payment, error) {
	if checkoutSessionID != "" {
		p, err := repo.FindByCheckoutSessionID(ctx, checkoutSessionID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if metaPaymentID != "" {
		return repo.FindByID(ctx, metaPaymentID)
	}
	return nil, nil
}

// ResolveForDispute implements the PI → charge-id lookup order used by
// dispute handlers.
func ResolveForDispute(ctx context.Context, repo Repository, paymentIntentID, chargeID string) (*Payment, error) {
	if paymentIntentID != "" {
		p, err := repo.FindByPaymentIntentID(ctx, paymentIntentID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if chargeID != "" {
		return repo.FindByChargeID(ctx, chargeID)
	}
	return nil, nil
}
