//go:build !linux

package transport

import "errors"

var errI2CUnsupported = errors.New("i2c-dev is only available on Linux")

func openI2CBus(string) (i2cBus, error) {
	return nil, errI2CUnsupported
}

func isRetryableBusError(error) bool { return false }
