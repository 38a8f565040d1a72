// Package engine defines the materializing query executor the synchronous
// path and the in-process drivers share.
package engine

import (
	"context"

	"github.com/tapgate/tapgate/internal/result"
)

type Engine interface {
	Execute(ctx context.Context, query string) (result.Table, error)
}
