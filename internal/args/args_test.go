package args

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/internal/sync"
)

func TestInputsToArgs(t *testing.T) {
	tests := []struct {
		name       string
		fn         any
		inputs     []any
		addContext bool
		err        string
	}{
		{
			name:       "just context",
			fn:         func(context.Context) error { return nil },
			inputs:     []any{},
			addContext: true,
		},
		{
			name:       "workflow context",
			fn:         func(sync.Context, string) error { return nil },
			inputs:     []any{"https://blob/audio.wav"},
			addContext: true,
		},
		{
			name:       "arguments with context",
			fn:         func(context.Context, int, string) error { return nil },
			inputs:     []any{42, ""},
			addContext: true,
		},
		{
			name:   "mismatched argument count - too many",
			fn:     func(int, string) error { return nil },
			inputs: []any{42, "", 13},
			err:    "mismatched argument count: expected 2, got 3",
		},
		{
			name:   "mismatched argument count - too few",
			fn:     func(int, string) error { return nil },
			inputs: []any{42},
			err:    "mismatched argument count: expected 2, got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := make([]payload.Payload, 0)
			for _, input := range tt.inputs {
				p, err := converter.DefaultConverter.To(input)
				require.NoError(t, err)
				inputs = append(inputs, p)
			}

			args, addContext, err := InputsToArgs(converter.DefaultConverter, reflect.ValueOf(tt.fn), inputs)
			if tt.err != "" {
				require.EqualError(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.addContext, addContext)

			offset := 0
			if addContext {
				offset = 1
			}

			for i, input := range tt.inputs {
				require.Equal(t, input, args[i+offset].Interface())
			}
		})
	}
}

func intReturn() (int, error) {
	return 0, nil
}

func stringReturn() (string, error) {
	return "", nil
}

func errorReturn() error {
	return nil
}

func TestReturnTypeMatch(t *testing.T) {
	require.NoError(t, ReturnTypeMatch[int](intReturn))
	require.NoError(t, ReturnTypeMatch[string](stringReturn))
	require.NoError(t, ReturnTypeMatch[any](errorReturn))
	require.NoError(t, ReturnTypeMatch[int](errorReturn))
	require.EqualError(t, ReturnTypeMatch[string](intReturn), "function must return string, got int")
	require.EqualError(t, ReturnTypeMatch[int](42), "not a function")
}

func intParam(int) {
}

func interfaceParam(string, any, int) {
}

func mixedParams(context.Context, int, string) {
}

func TestParamsMatch(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"int match", ParamsMatch(intParam, 0, 42), ""},
		{"int mismatch", ParamsMatch(intParam, 0, ""), "mismatched argument type: expected int, got string"},
		{"interface ignored", ParamsMatch(interfaceParam, 0, "", 23, 42), ""},
		{"mixed params", ParamsMatch(mixedParams, 1, 42, ""), ""},
		{"mixed params - no skip", ParamsMatch(mixedParams, 0, 42, ""), "mismatched argument count: expected 3, got 2"},
		{"mixed params - wrong params", ParamsMatch(mixedParams, 1, "", 42), "mismatched argument type: expected int, got string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				require.NoError(t, tt.err)
			} else {
				require.EqualError(t, tt.err, tt.want)
			}
		})
	}
}
