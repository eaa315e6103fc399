package server

import (
	"github.com/ValentinKolb/feval/lib/calc"
	"github.com/ValentinKolb/feval/rpc/common"
)

// NewCalcHandler answers every message by evaluating it with c. Variables are
// shared by all connections. A nil calculator creates a fresh one.
func NewCalcHandler(c *calc.Calculator) IMessageHandler {
	if c == nil {
		c = calc.New()
	}
	return &calcHandlerImpl{calc: c}
}

type calcHandlerImpl struct {
	calc *calc.Calculator
}

func (h *calcHandlerImpl) Handle(payload []byte) []byte {
	result, ok, err := h.calc.Evaluate(string(payload))
	switch {
	case err != nil:
		return []byte(common.ErrorPrefix + err.Error())
	case !ok:
		return []byte(common.NoReturn)
	default:
		return []byte(result)
	}
}
