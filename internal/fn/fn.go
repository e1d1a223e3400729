package fn

import (
	"reflect"
	"runtime"
	"strings"
)

// Name returns the unqualified name of a function. Method values resolve to the method name,
// so an activity referenced as (*Activities).StartJob or a.StartJob is recorded as StartJob.
func Name(f any) string {
	full := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()

	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		full = full[i+1:]
	}

	// Method values are compiled into wrappers with this suffix
	return strings.TrimSuffix(full, "-fm")
}
