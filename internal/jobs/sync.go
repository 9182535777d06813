package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// ScheduleBankSync fans out a scheduled sync for every healthy connection.
func (j *Jobs) ScheduleBankSync(ctx context.Context, _ events.Event) error {
	conns, err := j.connections.ListByStatus(ctx, model.BankConnectionStatusConnected)
	if err != nil {
		return errors.Wrap(err, "listing connected connections")
	}

	for _, c := range conns {
		if err = j.emitter.Emit(ctx, events.SyncConnection, events.SyncConnectionPayload{
			ConnectionID: c.ID,
			ManualSync:   false,
		}); err != nil {
			return errors.Wrapf(err, "emitting sync for connection %s", c.ID)
		}
	}

	logger.FromContext(ctx).Info("scheduled bank sync", zap.Int("connections", len(conns)))
	return nil
}

// InitialSetup starts the first, full sync of a freshly linked connection.
func (j *Jobs) InitialSetup(ctx context.Context, ev events.Event) error {
	var p events.InitialSetupPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	conn, err := j.connections.Get(ctx, p.ConnectionID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.FromContext(ctx).Warn("connection not found, skipping setup", zap.String("connection_id", p.ConnectionID))
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading connection")
	}
	if conn.TeamID != p.TeamID {
		logger.FromContext(ctx).Warn("connection belongs to another team, skipping setup",
			zap.String("connection_id", p.ConnectionID), zap.String("team_id", p.TeamID))
		return nil
	}

	return errors.Wrap(j.emitter.Emit(ctx, events.SyncConnection, events.SyncConnectionPayload{
		ConnectionID: conn.ID,
		ManualSync:   true,
	}), "emitting initial sync")
}

// SyncConnection refreshes the accounts of a connection and fans out one account sync per enabled account.
func (j *Jobs) SyncConnection(ctx context.Context, ev events.Event) error {
	var p events.SyncConnectionPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	l := logger.FromContext(ctx).With(zap.String("connection_id", p.ConnectionID))

	conn, err := j.connections.Get(ctx, p.ConnectionID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("connection not found, skipping sync")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading connection")
	}
	if conn.Status != model.BankConnectionStatusConnected {
		l.Info("connection not connected, skipping sync", zap.String("status", string(conn.Status)))
		return nil
	}

	remote, err := j.provider.Accounts(ctx, conn.AccessToken)
	if err != nil {
		return j.providerFailure(ctx, ev, conn.ID, err)
	}

	var enabled []*repository.BankAccount
	for _, a := range remote {
		account := &repository.BankAccount{
			TeamID:           conn.TeamID,
			BankConnectionID: conn.ID,
			AccountID:        a.ID,
			Name:             a.Name,
			Currency:         a.Currency,
			Balance:          a.Balance,
			Type:             a.Type,
			Enabled:          true,
		}
		if err = j.accounts.Upsert(ctx, account); err != nil {
			return errors.Wrapf(err, "upserting account %s", a.ID)
		}
		if account.Enabled {
			enabled = append(enabled, account)
		}
	}

	for i, a := range enabled {
		var opts []events.EmitOption
		if !p.ManualSync {
			// spread scheduled syncs so the aggregator is not hit in a burst
			opts = append(opts, events.WithDelay(time.Duration(i)*accountSyncSpacing))
		}
		if err = j.emitter.Emit(ctx, events.SyncAccount, events.SyncAccountPayload{
			AccountID:  a.ID,
			ManualSync: p.ManualSync,
		}, opts...); err != nil {
			return errors.Wrapf(err, "emitting sync for account %s", a.ID)
		}
	}

	if err = j.connections.MarkSynced(ctx, conn.ID, j.now()); err != nil {
		return errors.Wrap(err, "marking connection synced")
	}

	l.Info("connection synced", zap.Int("accounts", len(remote)), zap.Int("enabled", len(enabled)))
	return nil
}

// SyncAccount refreshes the balance and transactions of one account.
func (j *Jobs) SyncAccount(ctx context.Context, ev events.Event) error {
	var p events.SyncAccountPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	l := logger.FromContext(ctx).With(zap.String("account_id", p.AccountID))

	account, err := j.accounts.Get(ctx, p.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("account not found, skipping sync")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading account")
	}
	if !account.Enabled || account.Manual || account.BankConnectionID == "" {
		l.Info("account not syncable, skipping")
		return nil
	}

	conn, err := j.connections.Get(ctx, account.BankConnectionID)
	if err != nil {
		return errors.Wrap(err, "loading connection")
	}
	if conn.Status != model.BankConnectionStatusConnected {
		l.Info("connection not connected, skipping sync", zap.String("status", string(conn.Status)))
		return nil
	}

	remote, err := j.provider.Accounts(ctx, conn.AccessToken)
	if err != nil {
		return j.providerFailure(ctx, ev, conn.ID, err)
	}
	for _, a := range remote {
		if a.ID == account.AccountID {
			if err = j.accounts.UpdateBalance(ctx, account.ID, a.Balance); err != nil {
				return errors.Wrap(err, "updating balance")
			}
			break
		}
	}

	window := scheduledSyncWindow
	if p.ManualSync {
		window = manualSyncWindow
	}
	to := j.now()
	from := to.Add(-window)

	txs, err := j.provider.Transactions(ctx, conn.AccessToken, account.AccountID, from, to)
	if err != nil {
		return j.providerFailure(ctx, ev, conn.ID, err)
	}

	if p.ManualSync {
		for start := 0; start < len(txs); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(txs))
			if err = j.emitter.Emit(ctx, events.UpsertTransactions, events.UpsertTransactionsPayload{
				TeamID:        account.TeamID,
				BankAccountID: account.ID,
				Transactions:  txs[start:end],
			}); err != nil {
				return errors.Wrap(err, "emitting transaction batch")
			}
		}
		l.Info("account synced", zap.Int("transactions", len(txs)), zap.Bool("manual", true))
		return nil
	}

	inserted, err := j.transactions.UpsertBatch(ctx, toRows(account.TeamID, account.ID, txs))
	if err != nil {
		return errors.Wrap(err, "upserting transactions")
	}
	if len(txs) > 0 {
		j.invalidate(ctx, account.TeamID)
	}

	if len(inserted) > 0 {
		if err = j.emitter.Emit(ctx, events.TransactionsNotification, events.TransactionsNotificationPayload{
			TeamID:         account.TeamID,
			TransactionIDs: inserted,
		}); err != nil {
			return errors.Wrap(err, "emitting transactions notification")
		}
	}

	l.Info("account synced", zap.Int("transactions", len(txs)), zap.Int("new", len(inserted)))
	return nil
}

// UpsertTransactions stores one batch of provider transactions.
func (j *Jobs) UpsertTransactions(ctx context.Context, ev events.Event) error {
	var p events.UpsertTransactionsPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	inserted, err := j.transactions.UpsertBatch(ctx, toRows(p.TeamID, p.BankAccountID, p.Transactions))
	if err != nil {
		return errors.Wrap(err, "upserting transactions")
	}
	if len(p.Transactions) > 0 {
		j.invalidate(ctx, p.TeamID)
	}

	logger.FromContext(ctx).Info("transactions upserted",
		zap.String("bank_account_id", p.BankAccountID),
		zap.Int("received", len(p.Transactions)),
		zap.Int("new", len(inserted)))
	return nil
}

// providerFailure records the classified aggregator error on the connection.
// Reauth problems are final for this run. Anything else is returned so the event
// is retried, and the ERROR status is only stored on the last attempt: a connection
// that is not CONNECTED is skipped by the retry.
func (j *Jobs) providerFailure(ctx context.Context, ev events.Event, connectionID string, cause error) error {
	l := logger.FromContext(ctx).With(zap.String("connection_id", connectionID))
	cls := bank.Classify(cause)

	if cls.Status == model.BankConnectionStatusRequiresReauth {
		if err := j.storeStatus(ctx, connectionID, cls); err != nil {
			l.Error("failed to store connection status", zap.Error(err))
		}
		l.Warn("connection requires reauth", zap.String("error_code", cls.Code))
		return nil
	}

	if ev.Attempt >= j.maxAttempts {
		if err := j.storeStatus(ctx, connectionID, cls); err != nil {
			l.Error("failed to store connection status", zap.Error(err))
		}
	}
	return errors.Wrap(cause, "aggregator request")
}

// toRows maps provider transactions to rows, dropping repeated internal ids
// since one upsert statement cannot touch the same row twice.
func toRows(teamID, bankAccountID string, txs []bank.Transaction) []*repository.Transaction {
	seen := make(map[string]struct{}, len(txs))
	rows := make([]*repository.Transaction, 0, len(txs))
	for _, t := range txs {
		if _, dup := seen[t.InternalID]; dup {
			continue
		}
		seen[t.InternalID] = struct{}{}

		status := model.TransactionStatusPosted
		if t.Pending {
			status = model.TransactionStatusPending
		}
		method := t.Method
		if method == "" {
			method = "other"
		}

		rows = append(rows, &repository.Transaction{
			TeamID:        teamID,
			BankAccountID: bankAccountID,
			InternalID:    t.InternalID,
			Name:          t.Name,
			MerchantName:  t.MerchantName,
			Amount:        t.Amount,
			Currency:      t.Currency,
			Date:          t.Date,
			Status:        status,
			Category:      model.CategoryUncategorized,
			Method:        method,
		})
	}
	return rows
}
