package service

import (
	"errors"

	"reservation-service/internal/apperror"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrSpecialDayNotFound    = errors.New("special day not found")
	ErrDepositPolicyNotFound = errors.New("deposit policy not found")
	ErrRoomsInvalid          = errors.New("rooms booked must be >= 1")
	ErrStartInPast           = errors.New("start date is in the past")
)

func notFound(err error) error {
	return apperror.Wrap(apperror.CodeNotFound, "", err)
}
