package handlers

import (
	"mitra/middleware"
	"mitra/utils"
)

// HandlerBundle groups the endpoint handlers routes are registered with.
type HandlerBundle struct {
	Transactions *TransactionHandler
	Account      *AccountHandler
	Health       *utils.HealthMonitor
	// Session gates the /api/mitra endpoints and logout.
	Session middleware.CredentialChecker
}
