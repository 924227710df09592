package mapped

import "errors"

var (
	ErrNotOpen           = errors.New("file not open")
	ErrAlreadyOpen       = errors.New("file already open")
	ErrReadOnly          = errors.New("file opened in read-only mode")
	ErrOutOfRange        = errors.New("operation exceeds file bounds")
	ErrCapacityExhausted = errors.New("unable to expand mapping")
	ErrInvalidMagic      = errors.New("invalid file format")
	ErrInvalidSize       = errors.New("initial size too small")
)
