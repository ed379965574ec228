package maxfactor

import "errors"

var (
	ErrUnknownDensity       = errors.New("maxfactor: unknown density")
	ErrUnknownVarianceModel = errors.New("maxfactor: unknown variance model")
)
