package sync

import "reflect"

// Context carries values through workflow code. Unlike context.Context it is never
// canceled by wall clock time, workflow code only ever blocks on futures.
type Context interface {
	Value(key any) any
}

type emptyCtx int

func (*emptyCtx) Value(key any) any {
	return nil
}

var background = new(emptyCtx)

// Background returns an empty Context
func Background() Context {
	return background
}

// WithValue returns a copy of parent in which the value associated with key is val.
func WithValue(parent Context, key, val any) Context {
	if parent == nil {
		panic("cannot create context from nil parent")
	}
	if key == nil {
		panic("nil key")
	}
	if !reflect.TypeOf(key).Comparable() {
		panic("key is not comparable")
	}
	return &valueCtx{parent, key, val}
}

type valueCtx struct {
	Context
	key, val any
}

func (c *valueCtx) Value(key any) any {
	if c.key == key {
		return c.val
	}
	return c.Context.Value(key)
}
