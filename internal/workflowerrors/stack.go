package workflowerrors

import (
	"strings"

	goerrors "github.com/go-errors/errors"
)

func stack(skip int) string {
	goerr := goerrors.Wrap("", skip)

	var b strings.Builder
	for _, frame := range goerr.StackFrames() {
		b.WriteString(frame.String())
	}

	return b.String()
}
