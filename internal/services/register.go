package services

import (
	"errors"

	"routekit/internal/di"
)

// Register provides every service constructor to the root container.
func Register(container *di.Container) error {
	return errors.Join(
		di.ProvideAll(container,
			NewRoomService,
			NewServerRoutes,
			NewHealthService,
		),
	)
}
