package ingest

import (
	"context"
	"fmt"
)

// maxCodeProbes bounds the forward scan for free codes so a pathological
// occupancy pattern cannot turn a suggestion into an unbounded walk.
const maxCodeProbes = 10000

// CodeAllocator decides availability of human-typed content codes and
// suggests nearby free ones on collision.
type CodeAllocator struct {
	content interface {
		CodeInUse(ctx context.Context, code int) (bool, error)
	}
}

func NewCodeAllocator(content ContentRepo) *CodeAllocator {
	return &CodeAllocator{content: content}
}

// IsAvailable reports whether no persisted record holds code.
func (a *CodeAllocator) IsAvailable(ctx context.Context, code int) (bool, error) {
	inUse, err := a.content.CodeInUse(ctx, code)
	if err != nil {
		return false, err
	}
	return !inUse, nil
}

// FindNearestAvailable scans forward from code+1 one integer at a time and
// returns the first count free codes in ascending order.
func (a *CodeAllocator) FindNearestAvailable(ctx context.Context, code int, count int) ([]int, error) {
	if count <= 0 {
		return nil, nil
	}
	free := make([]int, 0, count)
	for probe := code + 1; probe <= code+maxCodeProbes; probe++ {
		inUse, err := a.content.CodeInUse(ctx, probe)
		if err != nil {
			return nil, err
		}
		if !inUse {
			free = append(free, probe)
			if len(free) == count {
				return free, nil
			}
		}
	}
	return free, fmt.Errorf("no %d free codes within %d of %d", count, maxCodeProbes, code)
}
