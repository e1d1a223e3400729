package workflowerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewError_Nil(t *testing.T) {
	err := FromError(nil)
	require.Nil(t, err)
}

func Test_NewError_DoesNotWrapAgain(t *testing.T) {
	err := FromError(errors.New("foo"))

	err2 := FromError(err)
	require.Same(t, err, err2)
}

func Test_NewError_DoesWrap(t *testing.T) {
	input := errors.New("foo")
	e := FromError(input)

	var expectedType *Error
	require.ErrorAs(t, e, &expectedType)
	require.EqualError(t, e, input.Error())

	require.False(t, e.Permanent)
	require.NoError(t, e.Unwrap())
}

func Test_NewPermanentError(t *testing.T) {
	input := errors.New("foo")
	e := NewPermanentError(input)

	require.EqualError(t, e, input.Error())
	require.True(t, e.Permanent)
}

func Test_FromError_CarriesClassification(t *testing.T) {
	classified := New(KindAuthFailure, "key rejected", true)
	wrapped := fmt.Errorf("starting job: %w", classified)

	e := FromError(wrapped)
	require.Equal(t, KindAuthFailure, e.Kind)
	require.True(t, e.Permanent)
	require.Equal(t, "starting job: key rejected", e.Message)

	require.Equal(t, KindAuthFailure, KindOf(wrapped))
	require.False(t, CanRetry(wrapped))
}

func Test_RoundTrip_Panic(t *testing.T) {
	input := NewPanicError("foo")
	e := FromError(input)

	output := ToError(e)
	require.Equal(t, input, output)
}

func Test_RoundTrip_JSON(t *testing.T) {
	e := FromError(fmt.Errorf("outer: %w", New(KindUnreachable, "dial tcp: refused", false)))

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var restored Error
	require.NoError(t, json.Unmarshal(b, &restored))

	require.Equal(t, e.Message, restored.Message)
	require.Equal(t, KindUnreachable, restored.Kind)
	require.False(t, restored.Permanent)

	var cause *Error
	require.ErrorAs(t, restored.Unwrap(), &cause)
	require.Equal(t, "dial tcp: refused", cause.Message)
}

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "Error",
			err:  FromError(errors.New("foo")),
			want: true,
		},
		{
			name: "Permanent",
			err:  NewPermanentError(errors.New("foo")),
			want: false,
		},
		{
			name: "Transient",
			err:  New(KindUnreachable, "busy", false),
			want: true,
		},
		{
			name: "Panic",
			err:  NewPanicError("boom"),
			want: false,
		},
		{
			name: "Nil",
			err:  nil,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CanRetry(tt.err))
		})
	}
}
