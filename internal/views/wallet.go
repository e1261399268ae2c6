package views

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/present"
)

// PaymentProcessor performs the external money movement behind a deposit or
// withdrawal and returns its reference.
type PaymentProcessor interface {
	Process(ctx context.Context, kind model.TransactionType, amount decimal.Decimal, method string) (reference string, err error)
}

// SimulatedProcessor stands in for a payment provider: it waits Delay and
// always succeeds.
type SimulatedProcessor struct {
	Delay time.Duration
}

// Process implements PaymentProcessor.
func (p SimulatedProcessor) Process(ctx context.Context, kind model.TransactionType, amount decimal.Decimal, method string) (string, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "SIM-" + strings.ToUpper(uuid.NewString()[:8]), nil
}

// WalletView is a snapshot of the wallet page.
type WalletView struct {
	Phase          Phase                 `json:"phase"`
	Wallet         *model.Wallet         `json:"wallet,omitempty"`
	Balance        string                `json:"balance"`
	Transactions   []model.Transaction   `json:"transactions"`
	Processing     bool                  `json:"processing"`
	PaymentMethods []model.PaymentMethod `json:"paymentMethods"`
	Notices        []Notice              `json:"notices,omitempty"`
}

// Wallet drives the balance, the ledger and the add-money and withdraw flows.
// Input is validated before any request is issued.
type Wallet struct {
	*tracker
	gw        Backend
	sess      Session
	processor PaymentProcessor

	wallet     *model.Wallet
	txns       []model.Transaction
	processing bool
}

// NewWallet creates an idle wallet controller.
func NewWallet(gw Backend, sess Session, processor PaymentProcessor, logger *slog.Logger) *Wallet {
	if processor == nil {
		processor = SimulatedProcessor{Delay: 2 * time.Second}
	}
	return &Wallet{tracker: newTracker(logger), gw: gw, sess: sess, processor: processor}
}

// Load fetches the viewer's wallet and ledger.
func (c *Wallet) Load(ctx context.Context) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("view your wallet")
	}
	gen := c.begin()
	w, err := c.gw.GetWallet(ctx, user.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load wallet")
	}
	txns, err := c.gw.ListTransactions(ctx, w.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load transactions")
	}
	c.commit(gen, func() {
		c.wallet = w
		c.txns = txns
	})
	return nil
}

// parseAmount accepts a positive decimal amount.
func parseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, errordefs.Validation("Please enter an amount")
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, errordefs.Validation("Please enter a valid amount")
	}
	if !amount.IsPositive() {
		return decimal.Zero, errordefs.Validation("Amount must be greater than zero")
	}
	return amount.Round(2), nil
}

// Deposit adds money through the selected payment method. The ledger entry is
// recorded as completed.
func (c *Wallet) Deposit(ctx context.Context, amountText, methodID string) (*model.Transaction, error) {
	amount, err := parseAmount(amountText)
	if err != nil {
		return nil, err
	}
	if methodID == "" {
		return nil, errordefs.Validation("Please select a payment method")
	}
	method, ok := model.LookupPaymentMethod(methodID)
	if !ok {
		return nil, errordefs.Validation("Unknown payment method " + methodID)
	}
	w, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.release()

	return c.settle(ctx, w, model.NewTransaction{
		WalletID:    w.ID,
		Amount:      amount,
		Type:        model.TransactionDeposit,
		Status:      model.StatusCompleted,
		Description: "Added via " + method.Name,
	}, method.ID, fmt.Sprintf("%s added to your wallet", present.FormatAmount(amount)))
}

// Withdraw moves money out of the wallet. It requires a KYC-verified wallet
// regardless of amount and never exceeds the balance. The ledger entry is
// recorded as pending.
func (c *Wallet) Withdraw(ctx context.Context, amountText string) (*model.Transaction, error) {
	c.mu.Lock()
	w := c.wallet
	c.mu.Unlock()
	if w == nil {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "wallet not loaded", "")
	}
	if !w.IsKYCVerified {
		return nil, errordefs.New(errordefs.VH_KYC_REQUIRED, "Complete KYC verification to withdraw", "")
	}
	amount, err := parseAmount(amountText)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(w.Balance) {
		return nil, errordefs.Validation("Insufficient balance")
	}
	w, err = c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.release()

	return c.settle(ctx, w, model.NewTransaction{
		WalletID:    w.ID,
		Amount:      amount,
		Type:        model.TransactionWithdrawal,
		Status:      model.StatusPending,
		Description: "Withdrawal to bank account",
	}, "bank", "Withdrawal request submitted")
}

// acquire marks the wallet busy, returning the loaded wallet.
func (c *Wallet) acquire() (*model.Wallet, error) {
	if _, err := c.sess.Require(); err != nil {
		return nil, c.needSignIn("use your wallet")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet == nil {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "wallet not loaded", "")
	}
	if c.processing {
		return nil, busy()
	}
	c.processing = true
	w := *c.wallet
	return &w, nil
}

func (c *Wallet) release() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

// settle runs the payment step, records the authoritative transaction and
// patches the balance and ledger from the returned rows.
func (c *Wallet) settle(ctx context.Context, w *model.Wallet, nt model.NewTransaction, method, success string) (*model.Transaction, error) {
	ref, err := c.processor.Process(ctx, nt.Type, nt.Amount, method)
	if err != nil {
		return nil, c.warn(ctx, err, "Payment failed")
	}
	nt.ReferenceID = ref

	updated, txn, err := c.gw.RecordWalletTransaction(ctx, nt)
	if err != nil {
		return nil, c.warn(ctx, err, "Transaction failed")
	}
	c.mu.Lock()
	if c.wallet != nil && c.wallet.ID == w.ID {
		c.wallet = updated
		c.txns = append([]model.Transaction{*txn}, c.txns...)
	}
	c.mu.Unlock()
	c.notify(NoticeSuccess, success)
	return txn, nil
}

// Snapshot returns the current state.
func (c *Wallet) Snapshot() WalletView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	view := WalletView{
		Phase:          c.phase,
		Balance:        present.FormatAmount(decimal.Zero),
		Transactions:   append([]model.Transaction{}, c.txns...),
		Processing:     c.processing,
		PaymentMethods: model.PaymentMethods,
		Notices:        notices,
	}
	if c.wallet != nil {
		w := *c.wallet
		view.Wallet = &w
		view.Balance = present.FormatAmount(w.Balance)
	}
	return view
}
