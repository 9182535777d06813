package bank

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"
	"github.com/yakoovad/finflow/internal/config"
)

const (
	plaidDateLayout = "2006-01-02"
	plaidPageSize   = 500
)

type PlaidProvider struct {
	client *plaid.APIClient
}

func NewPlaidProvider(cfg config.PlaidConfig) *PlaidProvider {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	if cfg.Env == "production" {
		configuration.UseEnvironment(plaid.Production)
	} else {
		configuration.UseEnvironment(plaid.Sandbox)
	}

	return &PlaidProvider{client: plaid.NewAPIClient(configuration)}
}

func (p *PlaidProvider) ItemStatus(ctx context.Context, accessToken string) error {
	resp, _, err := p.client.PlaidApi.ItemGet(ctx).ItemGetRequest(*plaid.NewItemGetRequest(accessToken)).Execute()
	if err != nil {
		return toProviderError(err)
	}

	item := resp.GetItem()
	if perr, ok := item.GetErrorOk(); ok && perr != nil && perr.ErrorCode != "" {
		return &ProviderError{Code: perr.ErrorCode, Message: perr.ErrorMessage}
	}
	return nil
}

func (p *PlaidProvider) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	resp, _, err := p.client.PlaidApi.AccountsBalanceGet(ctx).
		AccountsBalanceGetRequest(*plaid.NewAccountsBalanceGetRequest(accessToken)).
		Execute()
	if err != nil {
		return nil, toProviderError(err)
	}

	accounts := make([]Account, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		balances := a.GetBalances()
		accounts = append(accounts, Account{
			ID:       a.GetAccountId(),
			Name:     a.GetName(),
			Currency: currencyOrDefault(balances.GetIsoCurrencyCode()),
			Type:     string(a.GetType()),
			Balance:  decimal.NewFromFloat(balances.GetCurrent()).Round(2),
		})
	}
	return accounts, nil
}

func (p *PlaidProvider) Transactions(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]Transaction, error) {
	var (
		out    []Transaction
		offset int32
	)

	for {
		request := plaid.NewTransactionsGetRequest(accessToken, from.Format(plaidDateLayout), to.Format(plaidDateLayout))
		request.SetOptions(plaid.TransactionsGetRequestOptions{
			AccountIds: &[]string{accountID},
			Count:      plaid.PtrInt32(plaidPageSize),
			Offset:     plaid.PtrInt32(offset),
		})

		resp, _, err := p.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, toProviderError(err)
		}

		for _, t := range resp.GetTransactions() {
			date, err := time.Parse(plaidDateLayout, t.GetDate())
			if err != nil {
				return nil, errors.Wrapf(err, "parsing date of transaction %s", t.GetTransactionId())
			}
			out = append(out, Transaction{
				InternalID:   t.GetAccountId() + "_" + t.GetTransactionId(),
				AccountID:    t.GetAccountId(),
				Name:         t.GetName(),
				MerchantName: t.GetMerchantName(),
				// plaid reports outflows as positive
				Amount:   decimal.NewFromFloat(t.GetAmount()).Round(2).Neg(),
				Currency: currencyOrDefault(t.GetIsoCurrencyCode()),
				Date:     date,
				Pending:  t.GetPending(),
				Method:   methodFromChannel(t.GetPaymentChannel()),
			})
		}

		offset += int32(len(resp.GetTransactions()))
		if len(resp.GetTransactions()) == 0 || offset >= resp.GetTotalTransactions() {
			return out, nil
		}
	}
}

func toProviderError(err error) error {
	perr, convErr := plaid.ToPlaidError(err)
	if convErr != nil || perr.ErrorCode == "" {
		return errors.Wrap(err, "plaid request")
	}
	return &ProviderError{Code: perr.ErrorCode, Message: perr.ErrorMessage}
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}

func methodFromChannel(channel string) string {
	switch channel {
	case "online", "in store":
		return "card_purchase"
	case "":
		return "other"
	default:
		return channel
	}
}
