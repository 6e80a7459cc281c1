// Package services holds the state behind the built-in controllers.
//
// HealthService reports liveness, readiness, version and route statistics.
// RoomService groups accepted WebSocket connections into named rooms and
// fans messages out to them.
//
// Services are constructed by the root dependency container:
//
//	if err := services.Register(container); err != nil {
//		return err
//	}
//
// Controllers then receive them as handler parameters.
package services
