package args

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/internal/sync"
)

func ArgsToInputs(c converter.Converter, args ...any) ([]payload.Payload, error) {
	inputs := make([]payload.Payload, 0, len(args))

	for _, arg := range args {
		input, err := c.To(arg)
		if err != nil {
			return nil, fmt.Errorf("converting args to inputs: %w", err)
		}
		inputs = append(inputs, input)
	}

	return inputs, nil
}

// InputsToArgs decodes the given inputs into arguments for fn. If the first parameter of fn
// is a context, its slot is left empty and addContext is true.
func InputsToArgs(c converter.Converter, fn reflect.Value, inputs []payload.Payload) ([]reflect.Value, bool, error) {
	addContext := false

	fnT := fn.Type()

	numArgs := fnT.NumIn()
	args := make([]reflect.Value, numArgs)

	if numArgs > 0 && (IsOwnContext(fnT.In(0)) || isContext(fnT.In(0))) {
		addContext = true
	}

	expected := numArgs
	if addContext {
		expected--
	}

	if expected != len(inputs) {
		return nil, false, fmt.Errorf("mismatched argument count: expected %d, got %d", expected, len(inputs))
	}

	input := 0
	for i := 0; i < numArgs; i++ {
		if i == 0 && addContext {
			continue
		}

		argT := fnT.In(i)

		arg := reflect.New(argT).Interface()
		err := c.From(inputs[input], arg)
		if err != nil {
			return nil, false, fmt.Errorf("converting inputs: %w", err)
		}

		args[i] = reflect.ValueOf(arg).Elem()

		input++
	}

	return args, addContext, nil
}

// ReturnTypeMatch checks that fn returns either just an error or (TResult, error).
func ReturnTypeMatch[TResult any](fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return errors.New("not a function")
	}

	if fnType.NumOut() < 1 || fnType.NumOut() > 2 {
		return errors.New("function must return either (error) or (result, error)")
	}

	if fnType.NumOut() > 1 {
		expected := reflect.TypeOf((*TResult)(nil)).Elem()
		if expected.Kind() != reflect.Interface && fnType.Out(0) != expected {
			return fmt.Errorf("function must return %s, got %s", expected, fnType.Out(0))
		}
	}

	return nil
}

// ParamsMatch checks that args match the parameters of fn, ignoring the first skip parameters.
func ParamsMatch(fn any, skip int, args ...any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return errors.New("not a function")
	}

	if fnType.NumIn() != skip+len(args) {
		return fmt.Errorf("mismatched argument count: expected %d, got %d", fnType.NumIn()-skip, len(args))
	}

	for i, arg := range args {
		paramType := fnType.In(i + skip)

		if paramType.Kind() == reflect.Interface {
			continue
		}

		argType := reflect.TypeOf(arg)
		if argType != paramType {
			return fmt.Errorf("mismatched argument type: expected %s, got %s", paramType, argType)
		}
	}

	return nil
}

// IsOwnContext returns true if the given type is the workflow context type
func IsOwnContext(inType reflect.Type) bool {
	contextElem := reflect.TypeOf((*sync.Context)(nil)).Elem()
	return inType != nil && inType == contextElem
}

func isContext(inType reflect.Type) bool {
	contextElem := reflect.TypeOf((*context.Context)(nil)).Elem()
	return inType != nil && inType.Implements(contextElem)
}
