package bank

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/model"
)

var reauthCodes = []string{
	"ITEM_LOGIN_REQUIRED",
	"PENDING_EXPIRATION",
	"PENDING_DISCONNECT",
	"ITEM_LOCKED",
	"INVALID_CREDENTIALS",
	"INVALID_UPDATED_USERNAME",
	"USER_PERMISSION_REVOKED",
	"ACCESS_NOT_GRANTED",
}

type Classification struct {
	Status  model.BankConnectionStatus
	Code    string
	Message string
}

// Classify maps the outcome of an aggregator call to a connection status.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Status: model.BankConnectionStatusConnected}
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Code == "" {
		return Classification{Status: model.BankConnectionStatusError, Message: err.Error()}
	}

	code := strings.ToUpper(perr.Code)
	for _, c := range reauthCodes {
		if strings.Contains(code, c) {
			return Classification{
				Status:  model.BankConnectionStatusRequiresReauth,
				Code:    perr.Code,
				Message: perr.Message,
			}
		}
	}

	return Classification{
		Status:  model.BankConnectionStatusError,
		Code:    perr.Code,
		Message: perr.Message,
	}
}
