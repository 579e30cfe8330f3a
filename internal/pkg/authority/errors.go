package authority

import "errors"

// ErrNotFound 权威服务返回 404
var ErrNotFound = errors.New("entity not found on authority")
