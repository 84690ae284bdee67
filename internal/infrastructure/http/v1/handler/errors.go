package handler

import "errors"

var (
	ErrInvalidTileIndex = errors.New("x and z should be integers")
	ErrUnknownSource    = errors.New("unknown source")
	InternalServerError = errors.New("the server encountered an error and could not process your request")
)
