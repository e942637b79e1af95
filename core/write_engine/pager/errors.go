package pager

import "errors"

var (
	ErrInvalidPageData = errors.New("invalid page data")
	ErrClosed          = errors.New("pager is closed")
)
