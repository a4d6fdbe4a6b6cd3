package ranging

import (
	"errors"
	"rtb-engine/internal/models"
	"rtb-engine/internal/pib"
)

var (
	ErrBusy                    = errors.New("peer already has an active session")
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrUnsupportedRanging      = errors.New("ranging is disabled")
	ErrInsufficientSamples     = errors.New("insufficient samples")
	ErrInconsistentAntennaData = errors.New("inconsistent antenna data")
	ErrTimedOut                = errors.New("ranging timed out")
	ErrIllegalTransition       = errors.New("illegal state transition")
	ErrUnknownStrategy         = errors.New("unknown reduction strategy")
)

// StatusFromError maps an error to the status reported in a confirmation.
func StatusFromError(err error) models.Status {
	switch {
	case err == nil:
		return models.StatusSuccess
	case errors.Is(err, ErrBusy):
		return models.StatusBusy
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, pib.ErrOutOfRange):
		return models.StatusInvalidParameter
	case errors.Is(err, ErrUnsupportedRanging):
		return models.StatusUnsupportedRanging
	case errors.Is(err, pib.ErrUnsupportedAttribute):
		return models.StatusUnsupportedAttribute
	case errors.Is(err, pib.ErrReadOnly):
		return models.StatusReadOnly
	case errors.Is(err, ErrInsufficientSamples):
		return models.StatusInsufficientSamples
	case errors.Is(err, ErrInconsistentAntennaData):
		return models.StatusInconsistentAntennaData
	case errors.Is(err, ErrTimedOut):
		return models.StatusTimedOut
	}
	return models.StatusFailed
}
