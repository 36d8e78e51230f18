package main

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cohortsql/compiler/util"
)

// concurrentOutputWithOrdering pairs a result with its input's original
// position so results can be reassembled in input order once every
// goroutine has finished, since errgroup itself gives no ordering
// guarantee across concurrent completions.
type concurrentOutputWithOrdering struct {
	order  int
	output any
}

// concurrentMapFuncWithError runs f over inputs with bounded concurrency,
// returning results in input order or the first error encountered. This is
// the multi-spec compile fan-out §5 carves out of the core's single-
// threaded constraint: each spec gets its own disposable compiler.Compiler,
// and only the CLI's batch-compile loop runs them concurrently. Adapted
// from the donor's database.ConcurrentMapFuncWithError (same errgroup +
// ordered-reassembly shape, generalized from dump-per-table to
// compile-per-spec).
func concurrentMapFuncWithError[Tin any, Tout any](inputs []Tin, concurrency int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg := errgroup.Group{}
	switch {
	case concurrency == 0:
		eg.SetLimit(1)
	case concurrency > 0:
		eg.SetLimit(concurrency)
	}

	ch := make(chan concurrentOutputWithOrdering, len(inputs))
	for i := range inputs {
		order, in := i, inputs[i]
		eg.Go(func() error {
			out, err := f(in)
			if err != nil {
				return err
			}
			ch <- concurrentOutputWithOrdering{order, out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	tmp := make([]concurrentOutputWithOrdering, 0, len(inputs))
	for t := range ch {
		tmp = append(tmp, t)
	}
	slices.SortFunc(tmp, func(a, b concurrentOutputWithOrdering) int {
		return cmp.Compare(a.order, b.order)
	})

	return util.TransformSlice(tmp, func(t concurrentOutputWithOrdering) Tout {
		return t.output.(Tout)
	}), nil
}
