package gateway

import (
	"context"
	stderrors "errors"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
)

// GetWallet returns the user's wallet, opening an empty one on first use.
func (g *Gateway) GetWallet(ctx context.Context, userID string) (w *model.Wallet, err error) {
	ctx, done := g.begin(ctx, "get_wallet")
	defer done(&err)

	w, err = g.store.GetWalletByUser(ctx, userID)
	if err == nil || !stderrors.Is(err, storage.ErrNotFound) {
		return w, err
	}
	w, err = g.store.CreateWallet(ctx, model.Wallet{UserID: userID})
	if stderrors.Is(err, storage.ErrConflict) {
		// Opened concurrently by another request.
		return g.store.GetWalletByUser(ctx, userID)
	}
	return w, err
}

// ListTransactions returns a wallet's ledger, newest first.
func (g *Gateway) ListTransactions(ctx context.Context, walletID string) (out []model.Transaction, err error) {
	ctx, done := g.begin(ctx, "list_transactions")
	defer done(&err)
	return g.store.ListTransactions(ctx, walletID)
}

// RecordWalletTransaction atomically inserts a ledger entry and adjusts the
// balance, returning both authoritative rows.
func (g *Gateway) RecordWalletTransaction(ctx context.Context, nt model.NewTransaction) (w *model.Wallet, t *model.Transaction, err error) {
	ctx, done := g.begin(ctx, "apply_wallet_transaction")
	defer done(&err)

	if !nt.Type.Valid() {
		return nil, nil, errordefs.Validation("unknown transaction type " + string(nt.Type))
	}
	if !nt.Amount.IsPositive() {
		return nil, nil, errordefs.Validation("amount must be greater than zero")
	}
	w, t, err = g.store.ApplyTransaction(ctx, nt)
	if err != nil {
		return nil, nil, err
	}
	g.emit(ctx, "wallet", g.events.PublishTransaction(ctx, *w, *t))
	return w, t, nil
}
