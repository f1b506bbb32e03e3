package booking

import (
	"fmt"

	"mitra/models"
)

func busyError(op, inFlight string) *models.Error {
	return models.NewError(models.KindBusy, op, fmt.Sprintf("%s is still in progress", inFlight))
}

func uncertainError(op, lastOp string) *models.Error {
	msg := fmt.Sprintf("the outcome of %s is unknown; refresh the transaction before trying again", lastOp)
	if lastOp == "book" {
		msg = "the outcome of book is unknown; check your transactions and reset before booking again"
	}
	return models.NewError(models.KindUncertain, op, msg)
}
