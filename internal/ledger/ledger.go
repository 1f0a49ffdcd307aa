package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PersistFunc receives an account snapshot after every mutation. It is
// invoked on a separate goroutine so ledger writes never block on storage.
type PersistFunc func(Account)

// Ledger holds every user's balances and append-only transaction history.
// The accounts map is guarded by its own lock; each account has a dedicated
// mutex so concurrent mutations to different users never contend.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*userAccount
	persist  PersistFunc
}

type userAccount struct {
	mu           sync.Mutex
	userID       string
	username     string
	passwordHash string
	balances     map[string]float64
	history      []Transaction
	ephemeral    bool // demo accounts are never persisted
}

// New creates an empty ledger. persist may be nil.
func New(persist PersistFunc) *Ledger {
	return &Ledger{
		accounts: make(map[string]*userAccount),
		persist:  persist,
	}
}

// Seed installs accounts loaded from storage. Called once at startup before
// any concurrent access.
func (l *Ledger) Seed(accounts []Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range accounts {
		balances := make(map[string]float64, len(a.Balances))
		for asset, qty := range a.Balances {
			balances[asset] = qty
		}
		l.accounts[a.UserID] = &userAccount{
			userID:       a.UserID,
			username:     a.Username,
			passwordHash: a.PasswordHash,
			balances:     balances,
			history:      append([]Transaction(nil), a.History...),
		}
	}
}

// CreateUser registers a new account with an initial USD balance.
// ephemeral accounts (the demo user) live in memory only.
func (l *Ledger) CreateUser(userID, username, passwordHash string, initialCash float64, ephemeral bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, acc := range l.accounts {
		if acc.username == username {
			return ErrUserExists
		}
	}

	l.accounts[userID] = &userAccount{
		userID:       userID,
		username:     username,
		passwordHash: passwordHash,
		balances:     map[string]float64{USD: initialCash},
		ephemeral:    ephemeral,
	}
	return nil
}

// RemoveUser drops an account from the ledger (demo reset on restart).
func (l *Ledger) RemoveUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, userID)
}

func (l *Ledger) account(userID string) (*userAccount, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[userID]
	return acc, ok
}

// Lookup finds a user by username for authentication.
func (l *Ledger) Lookup(username string) (userID, passwordHash string, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, acc := range l.accounts {
		if acc.username == username {
			return acc.userID, acc.passwordHash, nil
		}
	}
	return "", "", ErrUserNotFound
}

// ExecuteTrade validates and applies a trade atomically: both balance legs
// and the history append happen under the user's lock, so no reader ever
// observes one without the other.
func (l *Ledger) ExecuteTrade(userID, baseAsset, quoteAsset string, side Side, quantity, price float64, baseUSD, quoteUSD *float64, executedByBot string) (Transaction, error) {
	if quantity <= 0 || price <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}

	acc, ok := l.account(userID)
	if !ok {
		return Transaction{}, ErrUserNotFound
	}

	quoteCost := price * quantity

	acc.mu.Lock()
	defer acc.mu.Unlock()

	switch side {
	case SideBuy:
		if acc.balances[quoteAsset] < quoteCost {
			return Transaction{}, ErrInsufficientFunds
		}
	case SideSell:
		if acc.balances[baseAsset] < quantity {
			return Transaction{}, ErrInsufficientAssets
		}
	default:
		return Transaction{}, ErrInvalidQuantity
	}

	tx := Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          KindTrade,
		BaseAsset:     baseAsset,
		QuoteAsset:    quoteAsset,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Timestamp:     time.Now().UTC(),
		BaseUSDPrice:  baseUSD,
		QuoteUSDPrice: quoteUSD,
		ExecutedByBot: executedByBot,
	}

	if side == SideBuy {
		acc.balances[quoteAsset] -= quoteCost
		acc.balances[baseAsset] += quantity
	} else {
		acc.balances[baseAsset] -= quantity
		acc.balances[quoteAsset] += quoteCost
	}
	acc.history = append(acc.history, tx)

	l.persistLocked(acc)
	return tx, nil
}

// Deposit credits USD within the account rules and appends one record.
func (l *Ledger) Deposit(userID string, amount float64) (Transaction, error) {
	if amount < MinDeposit {
		return Transaction{}, ErrDepositTooSmall
	}
	if amount > MaxDeposit {
		return Transaction{}, ErrDepositTooLarge
	}

	acc, ok := l.account(userID)
	if !ok {
		return Transaction{}, ErrUserNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	// Timestamp under the lock so the history stays chronological even
	// under concurrent mutations.
	one := 1.0
	tx := Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          KindDeposit,
		BaseAsset:     USD,
		QuoteAsset:    USD,
		Side:          SideBuy,
		Quantity:      amount,
		Price:         1,
		Timestamp:     time.Now().UTC(),
		BaseUSDPrice:  &one,
		QuoteUSDPrice: &one,
	}

	acc.balances[USD] += amount
	acc.history = append(acc.history, tx)

	l.persistLocked(acc)
	return tx, nil
}

// Withdraw debits USD; the balance can never go negative.
func (l *Ledger) Withdraw(userID string, amount float64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}

	acc, ok := l.account(userID)
	if !ok {
		return Transaction{}, ErrUserNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	if acc.balances[USD] < amount {
		return Transaction{}, ErrWithdrawalExceedsBalance
	}

	one := 1.0
	tx := Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          KindWithdrawal,
		BaseAsset:     USD,
		QuoteAsset:    USD,
		Side:          SideSell,
		Quantity:      amount,
		Price:         1,
		Timestamp:     time.Now().UTC(),
		BaseUSDPrice:  &one,
		QuoteUSDPrice: &one,
	}

	acc.balances[USD] -= amount
	acc.history = append(acc.history, tx)

	l.persistLocked(acc)
	return tx, nil
}

// Balance returns the current quantity of one asset.
func (l *Ledger) Balance(userID, asset string) (float64, error) {
	acc, ok := l.account(userID)
	if !ok {
		return 0, ErrUserNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balances[asset], nil
}

// Snapshot returns an independent copy of a user's account.
func (l *Ledger) Snapshot(userID string) (Account, error) {
	acc, ok := l.account(userID)
	if !ok {
		return Account{}, ErrUserNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.snapshotLocked(), nil
}

// PortfolioValueUSD values every positive holding at the latest USD price.
// Assets without an observable price are skipped, matching the simulator's
// tolerance for partially stale feeds.
func (l *Ledger) PortfolioValueUSD(userID string, priceUSD func(asset string) (float64, bool)) (float64, error) {
	acc, ok := l.account(userID)
	if !ok {
		return 0, ErrUserNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	total := 0.0
	for asset, qty := range acc.balances {
		if qty <= 0 {
			continue
		}
		if asset == USD {
			total += qty
			continue
		}
		if price, ok := priceUSD(asset); ok {
			total += qty * price
		}
	}
	return total, nil
}

func (acc *userAccount) snapshotLocked() Account {
	balances := make(map[string]float64, len(acc.balances))
	for asset, qty := range acc.balances {
		balances[asset] = qty
	}
	return Account{
		UserID:       acc.userID,
		Username:     acc.username,
		PasswordHash: acc.passwordHash,
		Balances:     balances,
		History:      append([]Transaction(nil), acc.history...),
	}
}

// persistLocked hands a snapshot to the persistence hook without blocking
// the caller. Must be called with acc.mu held.
func (l *Ledger) persistLocked(acc *userAccount) {
	if l.persist == nil || acc.ephemeral {
		return
	}
	snap := acc.snapshotLocked()
	go l.persist(snap)
}
