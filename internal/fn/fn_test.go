package fn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type activities struct{}

func (a *activities) StartJob(ctx context.Context, audioURL string) (string, error) {
	return "", nil
}

func (a *activities) poll(ctx context.Context) error {
	return nil
}

func saveResult(ctx context.Context) error {
	return nil
}

func Test_Name(t *testing.T) {
	var a *activities

	tests := map[string]struct {
		f    any
		want string
	}{
		"function":             {saveResult, "saveResult"},
		"method value":         {a.StartJob, "StartJob"},
		"unexported method":    {a.poll, "poll"},
		"method expression":    {(*activities).StartJob, "StartJob"},
		"package qualified fn": {context.Background, "Background"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, Name(tt.f))
		})
	}
}
