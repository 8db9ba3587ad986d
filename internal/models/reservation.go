package models

import "time"

// ReservationPhase: состояние одной попытки бронирования.
// COMMITTED и ABORTED терминальны.
type ReservationPhase string

const (
	PhaseValidating ReservationPhase = "VALIDATING"
	PhaseLocking    ReservationPhase = "LOCKING"
	PhaseChecking   ReservationPhase = "CHECKING"
	PhaseCommitting ReservationPhase = "COMMITTING"
	PhaseCommitted  ReservationPhase = "COMMITTED"
	PhaseAborted    ReservationPhase = "ABORTED"
)

func (p ReservationPhase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseAborted
}

// ReserveCommand содержит всё для атомарной части: готовая бронь (ID, цена и депозит уже посчитаны),
// запись идемпотентности и ночи в порядке возрастания. Число номеров категории хранилище
// перечитывает само под блокировкой категории.
type ReserveCommand struct {
	Booking     *Booking
	Idempotency *IdempotencyRecord
	Nights      []time.Time

	OnPhase func(ReservationPhase)
}

func (c *ReserveCommand) Enter(p ReservationPhase) {
	if c.OnPhase != nil {
		c.OnPhase(p)
	}
}
