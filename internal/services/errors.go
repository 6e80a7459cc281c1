package services

import "errors"

// Room service errors
var (
	ErrInvalidRoom  = errors.New("invalid room name")
	ErrRoomNotFound = errors.New("room not found")
	ErrEmptyMessage = errors.New("message is empty")
)
