package metadata

import (
	"fmt"

	"github.com/v4l2camerahal/camerahal/halerr"
)

func errInvalidArgument(tag Tag) error {
	return halerr.InvalidArgument(nil, fmt.Sprintf("unsupported value for %s", tag))
}

func errNoDevice(msg string) error {
	return halerr.NoDevice(nil, msg)
}

func errNotSupported(msg string) error {
	return halerr.NotSupported(nil, msg)
}
