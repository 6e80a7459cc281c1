package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"

	"routekit/internal/di"
	"routekit/internal/routing"
	"routekit/internal/server"
)

// Register provides every controller constructor to the root container.
func Register(container *di.Container) error {
	return errors.Join(
		di.ProvideAll(container,
			NewHealthController,
			NewRoomController,
			NewDocsController,
			NewMetricsController,
		),
	)
}

// Controllers instantiates every built-in controller from root, in the order
// their routes are registered.
func Controllers(root *di.Container, opts ...routing.Option) ([]*routing.Middleware, error) {
	instantiate := []func(*di.Container, ...routing.Option) (*routing.Middleware, error){
		routing.MustMiddlewareFor[*HealthController]().Instantiate,
		routing.MustMiddlewareFor[*RoomController]().Instantiate,
		routing.MustMiddlewareFor[*MetricsController]().Instantiate,
		routing.MustMiddlewareFor[*DocsController]().Instantiate,
	}

	controllers := make([]*routing.Middleware, 0, len(instantiate))
	for _, fn := range instantiate {
		mw, err := fn(root, opts...)
		if err != nil {
			return nil, err
		}
		controllers = append(controllers, mw)
	}
	return controllers, nil
}

// Mount instantiates the built-in controllers and registers their routes on app and srv.
func Mount(ctx context.Context, root *di.Container, app chi.Router, srv *server.Server, consume routing.MetadataConsumer, opts ...routing.Option) error {
	controllers, err := Controllers(root, opts...)
	if err != nil {
		return err
	}
	for _, mw := range controllers {
		if err := mw.Register(ctx, app, srv, consume); err != nil {
			return fmt.Errorf("register %T: %w", mw.Controller(), err)
		}
	}
	return nil
}
