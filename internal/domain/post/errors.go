package post

import "errors"

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrParentNotVisible = errors.New("cannot comment on a post that is not published")
	ErrContentBlocked   = errors.New("content blocked by moderation")
)
