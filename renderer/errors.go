package renderer

import "github.com/pkg/errors"

var (
	ErrNoTracers        = errors.New("renderer: at least one tracer must be attached")
	ErrSceneNotDefined  = errors.New("renderer: no scene defined")
	ErrCameraNotDefined = errors.New("renderer: no camera defined")
	ErrInvalidFrame     = errors.New("renderer: frame dimensions must be non-zero")
	ErrInterrupted      = errors.New("renderer: closed while rendering")
)
