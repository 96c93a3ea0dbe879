package phlex

import "reflect"

// The adapters below lift plain typed functions into the type-erased
// node callables. Inputs arrive positionally in the order declared at
// registration; a value of the wrong type fails the run with a
// TypeMismatchError naming both types.

func bindArg[T any](in []any, i int) (T, error) {
	v, ok := in[i].(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{
			Requested: reflect.TypeOf(&zero).Elem().String(),
			Stored:    typeNameOf(in[i]),
		}
	}
	return v, nil
}

// Apply1 lifts a one-input, one-output function into a TransformFunc.
func Apply1[A, R any](f func(A) R) TransformFunc {
	return func(ctx Context, in []any) ([]any, error) {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return nil, err
		}
		return []any{f(a)}, nil
	}
}

// Apply2 lifts a two-input, one-output function into a TransformFunc.
func Apply2[A, B, R any](f func(A, B) R) TransformFunc {
	return func(ctx Context, in []any) ([]any, error) {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return nil, err
		}
		b, err := bindArg[B](in, 1)
		if err != nil {
			return nil, err
		}
		return []any{f(a, b)}, nil
	}
}

// Apply3 lifts a three-input, one-output function into a TransformFunc.
func Apply3[A, B, C, R any](f func(A, B, C) R) TransformFunc {
	return func(ctx Context, in []any) ([]any, error) {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return nil, err
		}
		b, err := bindArg[B](in, 1)
		if err != nil {
			return nil, err
		}
		c, err := bindArg[C](in, 2)
		if err != nil {
			return nil, err
		}
		return []any{f(a, b, c)}, nil
	}
}

// Observe1 lifts a one-input procedure into an ObserveFunc.
func Observe1[A any](f func(A)) ObserveFunc {
	return func(ctx Context, in []any) error {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return err
		}
		f(a)
		return nil
	}
}

// Observe2 lifts a two-input procedure into an ObserveFunc.
func Observe2[A, B any](f func(A, B)) ObserveFunc {
	return func(ctx Context, in []any) error {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return err
		}
		b, err := bindArg[B](in, 1)
		if err != nil {
			return err
		}
		f(a, b)
		return nil
	}
}

// Observe3 lifts a three-input procedure into an ObserveFunc.
func Observe3[A, B, C any](f func(A, B, C)) ObserveFunc {
	return func(ctx Context, in []any) error {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return err
		}
		b, err := bindArg[B](in, 1)
		if err != nil {
			return err
		}
		c, err := bindArg[C](in, 2)
		if err != nil {
			return err
		}
		f(a, b, c)
		return nil
	}
}

// Fold1 lifts a typed fold step into an UpdateFunc. The accumulator
// starts from the registered InitialValue, or the zero value of T.
func Fold1[T, A any](f func(T, A) T) UpdateFunc {
	return func(ctx Context, acc any, in []any) (any, error) {
		a, err := bindArg[A](in, 0)
		if err != nil {
			return acc, err
		}
		t, _ := acc.(T)
		return f(t, a), nil
	}
}

// CommitValue lifts a typed finalizer into a CommitFunc emitting a
// single output product.
func CommitValue[T, R any](f func(T) R) CommitFunc {
	return func(ctx Context, acc any) ([]any, error) {
		t, _ := acc.(T)
		return []any{f(t)}, nil
	}
}

// CommitIdentity emits the accumulator itself as the single output
// product.
func CommitIdentity[T any]() CommitFunc {
	return func(ctx Context, acc any) ([]any, error) {
		t, _ := acc.(T)
		return []any{t}, nil
	}
}
