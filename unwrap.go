package eventloop

import (
	"fmt"
	"reflect"

	"github.com/joeycumines/logiface"
)

// The unwrap dispatcher selects how a continuation callable is bound to its
// parent future's value. Go has no overload resolution, so the selection
// runs when the continuation is attached, over reflected types: the parent's
// static value type on one axis, the callable's parameter list on the other.
// The selected shape is stored as a tag; applying the continuation is one
// switch over that tag.

// unwrapShape identifies one of the argument-binding strategies, in
// priority order. shapeFailed means no strategy matched.
type unwrapShape int8

const (
	shapeFailed unwrapShape = iota
	// shapeNoUnwrap passes the parent future itself.
	shapeNoUnwrap
	// shapeNoInput calls the continuation with no arguments after draining
	// the parent.
	shapeNoInput
	// shapeRValueUnwrap passes the parent's value.
	shapeRValueUnwrap
	// shapeDoubleUnwrap awaits the parent, then its future value, and
	// passes the inner value.
	shapeDoubleUnwrap
	// shapeDeepestUnwrap awaits the whole chain of nested futures and
	// passes the innermost value.
	shapeDeepestUnwrap
	// shapeTupleExplode passes a tuple value's elements as separate
	// arguments.
	shapeTupleExplode
	// shapeFuturesTupleDouble awaits each future in a tuple of futures and
	// passes their values as separate arguments.
	shapeFuturesTupleDouble
	// shapeFuturesTupleDeepest recursively awaits each future in a tuple.
	shapeFuturesTupleDeepest
	// shapeFuturesRangeDouble awaits each future in a sequence and passes
	// the slice of their values.
	shapeFuturesRangeDouble
	// shapeFuturesRangeDeepest recursively awaits each future in a
	// sequence.
	shapeFuturesRangeDeepest
	// shapeWhenAnySplit passes a disjunction result's index and tasks.
	shapeWhenAnySplit
	// shapeWhenAnyExplode passes the index and each task as separate
	// arguments (tuple branch).
	shapeWhenAnyExplode
	// shapeWhenAnyTupleElement passes the winning future of a same-typed
	// tuple.
	shapeWhenAnyTupleElement
	// shapeWhenAnyRangeElement passes the winning future of a sequence.
	shapeWhenAnyRangeElement
	// shapeWhenAnyTupleDouble passes the winning future's value.
	shapeWhenAnyTupleDouble
	// shapeWhenAnyTupleDeepest passes the winner's innermost value.
	shapeWhenAnyTupleDeepest
	// shapeWhenAnyRangeDouble passes the winning future's value.
	shapeWhenAnyRangeDouble
	// shapeWhenAnyRangeDeepest passes the winner's innermost value.
	shapeWhenAnyRangeDeepest
)

// String returns the shape's name.
func (s unwrapShape) String() string {
	switch s {
	case shapeNoUnwrap:
		return "no_unwrap"
	case shapeNoInput:
		return "no_input"
	case shapeRValueUnwrap:
		return "rvalue_unwrap"
	case shapeDoubleUnwrap:
		return "double_unwrap"
	case shapeDeepestUnwrap:
		return "deepest_unwrap"
	case shapeTupleExplode:
		return "tuple_explode"
	case shapeFuturesTupleDouble:
		return "futures_tuple_double"
	case shapeFuturesTupleDeepest:
		return "futures_tuple_deepest"
	case shapeFuturesRangeDouble:
		return "futures_range_double"
	case shapeFuturesRangeDeepest:
		return "futures_range_deepest"
	case shapeWhenAnySplit:
		return "when_any_split"
	case shapeWhenAnyExplode:
		return "when_any_explode"
	case shapeWhenAnyTupleElement:
		return "when_any_tuple_element"
	case shapeWhenAnyRangeElement:
		return "when_any_range_element"
	case shapeWhenAnyTupleDouble:
		return "when_any_tuple_double"
	case shapeWhenAnyTupleDeepest:
		return "when_any_tuple_deepest"
	case shapeWhenAnyRangeDouble:
		return "when_any_range_double"
	case shapeWhenAnyRangeDeepest:
		return "when_any_range_deepest"
	default:
		return "failed"
	}
}

// tupleValue is implemented by the TupleN types: a fixed-arity value whose
// elements the dispatcher can explode into separate arguments. tupleTypes
// must be callable on a zero value (it reports static types only).
type tupleValue interface {
	tupleLen() int
	tupleAt(i int) any
	tupleTypes() []reflect.Type
}

// whenAnyValue is implemented by the disjunction result types: an index
// identifying the first-ready child, plus the tasks themselves (a tuple or
// a slice). anyTasksType must be callable on a zero value.
type whenAnyValue interface {
	anyIndex() int
	anyTasks() any
	anyTasksType() reflect.Type
}

var (
	anyFutureType    = reflect.TypeOf((*AnyFuture)(nil)).Elem()
	tupleValueType   = reflect.TypeOf((*tupleValue)(nil)).Elem()
	whenAnyValueType = reflect.TypeOf((*whenAnyValue)(nil)).Elem()
	stopTokenType    = reflect.TypeOf(StopToken{})
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
	intType          = reflect.TypeOf(int(0))
)

// typeOf returns the reflect.Type of T without needing a value of T.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// isFutureType reports whether t is a future handle type.
func isFutureType(t reflect.Type) bool {
	return t != nil && t.Implements(anyFutureType)
}

// futureElemType returns the value type of a future handle type. The
// valueType method is receiver-independent, so a zero (nil) handle serves.
func futureElemType(t reflect.Type) reflect.Type {
	return reflect.Zero(t).Interface().(AnyFuture).valueType()
}

// deepestElemType unwraps nested future types to the innermost value type.
func deepestElemType(t reflect.Type) reflect.Type {
	for isFutureType(t) {
		t = futureElemType(t)
	}
	return t
}

// isTupleType reports whether t is one of the TupleN types.
func isTupleType(t reflect.Type) bool {
	return t != nil && t.Implements(tupleValueType)
}

// tupleElemTypes returns the static element types of a TupleN type.
func tupleElemTypes(t reflect.Type) []reflect.Type {
	return reflect.Zero(t).Interface().(tupleValue).tupleTypes()
}

// isWhenAnyType reports whether t is a disjunction result type.
func isWhenAnyType(t reflect.Type) bool {
	return t != nil && t.Implements(whenAnyValueType)
}

// whenAnyTasksType returns the static type of a disjunction result's tasks.
func whenAnyTasksType(t reflect.Type) reflect.Type {
	return reflect.Zero(t).Interface().(whenAnyValue).anyTasksType()
}

// unwrapPlan is the dispatcher's output: the selected shape, whether the
// continuation receives a stop-token prefix, and the continuation's result
// type (nil when the callable returns no value).
type unwrapPlan struct {
	shape      unwrapShape
	withToken  bool
	resultType reflect.Type
}

// selectUnwrap picks the highest-priority shape whose binding is
// well-formed for the given continuation, trying the whole table without a
// stop-token prefix first and with one second. A token-prefixed match marks
// the derived future stoppable.
func selectUnwrap(parentType, valueType, fnType reflect.Type) (unwrapPlan, error) {
	if fnType.Kind() != reflect.Func || fnType.IsVariadic() {
		return unwrapPlan{}, &TypeError{Message: "future: continuation must be a non-variadic function"}
	}
	resultType, err := continuationResultType(fnType)
	if err != nil {
		return unwrapPlan{}, err
	}
	for _, withToken := range []bool{false, true} {
		if shape, ok := matchShape(parentType, valueType, fnType, withToken); ok {
			return unwrapPlan{shape: shape, withToken: withToken, resultType: resultType}, nil
		}
	}
	futureDebug("future: no unwrap shape matched", func(b *logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event] {
		return b.Str("continuation", fnType.String()).Str("value", valueType.String())
	})
	return unwrapPlan{}, &TypeError{
		Message: fmt.Sprintf("future: continuation %v matches no unwrap shape for value type %v", fnType, valueType),
	}
}

// continuationResultType validates the callable's results and returns the
// value type: func(...) R, func(...) (R, error), func(...) error, or
// func(...). A trailing error return routes to the continuation future's
// failure; any other multi-return form is rejected.
func continuationResultType(fnType reflect.Type) (reflect.Type, error) {
	switch fnType.NumOut() {
	case 0:
		return nil, nil
	case 1:
		if fnType.Out(0) == errorType {
			return nil, nil
		}
		return fnType.Out(0), nil
	case 2:
		if fnType.Out(1) != errorType {
			return nil, &TypeError{Message: "future: continuation's second result must be error"}
		}
		return fnType.Out(0), nil
	default:
		return nil, &TypeError{Message: "future: continuation returns too many values"}
	}
}

// callableWith reports whether fn accepts exactly the given argument types,
// optionally prefixed with a stop token.
func callableWith(fn reflect.Type, withToken bool, args []reflect.Type) bool {
	n := len(args)
	if withToken {
		n++
	}
	if fn.NumIn() != n {
		return false
	}
	i := 0
	if withToken {
		if !stopTokenType.AssignableTo(fn.In(0)) {
			return false
		}
		i = 1
	}
	for _, a := range args {
		if a == nil || !a.AssignableTo(fn.In(i)) {
			return false
		}
		i++
	}
	return true
}

// matchShape walks the shape table in priority order with a fixed prefix
// choice. If shape k is returned, none of shapes 1..k-1 had a well-formed
// invocation with the same prefix.
func matchShape(parentType, v, fn reflect.Type, withToken bool) (unwrapShape, bool) {
	callable := func(args ...reflect.Type) bool {
		return callableWith(fn, withToken, args)
	}

	if callable(parentType) {
		return shapeNoUnwrap, true
	}
	if callable() {
		return shapeNoInput, true
	}
	if callable(v) {
		return shapeRValueUnwrap, true
	}
	if isFutureType(v) {
		inner := futureElemType(v)
		if callable(inner) {
			return shapeDoubleUnwrap, true
		}
		if deep := deepestElemType(v); deep != inner && callable(deep) {
			return shapeDeepestUnwrap, true
		}
	}
	if isTupleType(v) {
		elems := tupleElemTypes(v)
		if callable(elems...) {
			return shapeTupleExplode, true
		}
		if allFutureTypes(elems) {
			inners := make([]reflect.Type, len(elems))
			deeps := make([]reflect.Type, len(elems))
			deeper := false
			for i, e := range elems {
				inners[i] = futureElemType(e)
				deeps[i] = deepestElemType(e)
				if deeps[i] != inners[i] {
					deeper = true
				}
			}
			if callable(inners...) {
				return shapeFuturesTupleDouble, true
			}
			if deeper && callable(deeps...) {
				return shapeFuturesTupleDeepest, true
			}
		}
	}
	if v != nil && v.Kind() == reflect.Slice && isFutureType(v.Elem()) {
		inner := futureElemType(v.Elem())
		if callable(reflect.SliceOf(inner)) {
			return shapeFuturesRangeDouble, true
		}
		if deep := deepestElemType(v.Elem()); deep != inner && callable(reflect.SliceOf(deep)) {
			return shapeFuturesRangeDeepest, true
		}
	}
	if isWhenAnyType(v) {
		tasks := whenAnyTasksType(v)
		if callable(intType, tasks) {
			return shapeWhenAnySplit, true
		}
		switch {
		case isTupleType(tasks):
			elems := tupleElemTypes(tasks)
			withIndex := append([]reflect.Type{intType}, elems...)
			if callable(withIndex...) {
				return shapeWhenAnyExplode, true
			}
			if f, same := sameElemType(elems); same {
				if callable(f) {
					return shapeWhenAnyTupleElement, true
				}
				if isFutureType(f) {
					inner := futureElemType(f)
					if callable(inner) {
						return shapeWhenAnyTupleDouble, true
					}
					if deep := deepestElemType(f); deep != inner && callable(deep) {
						return shapeWhenAnyTupleDeepest, true
					}
				}
			}
		case tasks.Kind() == reflect.Slice:
			f := tasks.Elem()
			if callable(f) {
				return shapeWhenAnyRangeElement, true
			}
			if isFutureType(f) {
				inner := futureElemType(f)
				if callable(inner) {
					return shapeWhenAnyRangeDouble, true
				}
				if deep := deepestElemType(f); deep != inner && callable(deep) {
					return shapeWhenAnyRangeDeepest, true
				}
			}
		}
	}
	return shapeFailed, false
}

// allFutureTypes reports whether every type is a future handle type.
func allFutureTypes(types []reflect.Type) bool {
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		if !isFutureType(t) {
			return false
		}
	}
	return true
}

// sameElemType reports whether all types are identical, returning the type.
func sameElemType(types []reflect.Type) (reflect.Type, bool) {
	if len(types) == 0 {
		return nil, false
	}
	for _, t := range types[1:] {
		if t != types[0] {
			return nil, false
		}
	}
	return types[0], true
}

// drainValue unwraps a value through nested futures: one level for double
// shapes, the whole chain for deepest shapes. A failed future along the
// chain propagates its error.
func drainValue(v any, deepest bool) (any, error) {
	for {
		af, ok := v.(AnyFuture)
		if !ok {
			return v, nil
		}
		inner, err := af.getAny()
		if err != nil {
			return nil, err
		}
		v = inner
		if !deepest {
			return v, nil
		}
	}
}

// runUnwrap applies the continuation according to the selected shape. It is
// invoked once the parent is ready; unwrapping shapes that await nested
// futures block on those children here. A parent (or unwrapped child)
// failure propagates without invoking the continuation, except for the
// shapes that pass a future handle whole.
func runUnwrap(plan unwrapPlan, parent AnyFuture, fn reflect.Value, tok StopToken) (any, error) {
	var args []reflect.Value
	fnType := fn.Type()
	if plan.withToken {
		args = append(args, reflect.ValueOf(tok))
	}
	appendValue := func(v any) {
		in := fnType.In(len(args))
		args = append(args, coerceArg(v, in))
	}

	switch plan.shape {
	case shapeNoUnwrap:
		appendValue(parent)

	case shapeNoInput:
		if err := parent.Wait(); err != nil {
			return nil, err
		}
		if _, err := parent.getAny(); err != nil {
			return nil, err
		}

	case shapeRValueUnwrap:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		appendValue(v)

	case shapeDoubleUnwrap, shapeDeepestUnwrap:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		v, err = drainValue(v, plan.shape == shapeDeepestUnwrap)
		if err != nil {
			return nil, err
		}
		appendValue(v)

	case shapeTupleExplode:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		tv := v.(tupleValue)
		for i := 0; i < tv.tupleLen(); i++ {
			appendValue(tv.tupleAt(i))
		}

	case shapeFuturesTupleDouble, shapeFuturesTupleDeepest:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		tv := v.(tupleValue)
		deepest := plan.shape == shapeFuturesTupleDeepest
		for i := 0; i < tv.tupleLen(); i++ {
			elem, err := drainValue(tv.tupleAt(i), deepest)
			if err != nil {
				return nil, err
			}
			appendValue(elem)
		}

	case shapeFuturesRangeDouble, shapeFuturesRangeDeepest:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		deepest := plan.shape == shapeFuturesRangeDeepest
		src := reflect.ValueOf(v)
		in := fnType.In(len(args))
		out := reflect.MakeSlice(in, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			elem, err := drainValue(src.Index(i).Interface(), deepest)
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(coerceArg(elem, in.Elem()))
		}
		args = append(args, out)

	case shapeWhenAnySplit:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		wa := v.(whenAnyValue)
		appendValue(wa.anyIndex())
		appendValue(wa.anyTasks())

	case shapeWhenAnyExplode:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		wa := v.(whenAnyValue)
		appendValue(wa.anyIndex())
		tv := wa.anyTasks().(tupleValue)
		for i := 0; i < tv.tupleLen(); i++ {
			appendValue(tv.tupleAt(i))
		}

	case shapeWhenAnyTupleElement, shapeWhenAnyRangeElement,
		shapeWhenAnyTupleDouble, shapeWhenAnyTupleDeepest,
		shapeWhenAnyRangeDouble, shapeWhenAnyRangeDeepest:
		v, err := parent.getAny()
		if err != nil {
			return nil, err
		}
		wa := v.(whenAnyValue)
		winner, err := whenAnyWinner(wa)
		if err != nil {
			return nil, err
		}
		switch plan.shape {
		case shapeWhenAnyTupleElement, shapeWhenAnyRangeElement:
			appendValue(winner)
		case shapeWhenAnyTupleDouble, shapeWhenAnyRangeDouble:
			inner, err := drainValue(winner, false)
			if err != nil {
				return nil, err
			}
			appendValue(inner)
		default:
			inner, err := drainValue(winner, true)
			if err != nil {
				return nil, err
			}
			appendValue(inner)
		}

	default:
		return nil, &TypeError{Message: "future: no unwrap shape selected"}
	}

	return callContinuation(fn, args)
}

// whenAnyWinner extracts the winning task from a disjunction result.
// An empty disjunction (sentinel index) has no winner to unwrap.
func whenAnyWinner(wa whenAnyValue) (any, error) {
	idx := wa.anyIndex()
	if idx < 0 {
		return nil, &RangeError{Message: "future: empty disjunction has no ready child"}
	}
	switch tasks := wa.anyTasks().(type) {
	case tupleValue:
		if idx >= tasks.tupleLen() {
			return nil, &RangeError{Message: "future: disjunction index out of range"}
		}
		return tasks.tupleAt(idx), nil
	default:
		rv := reflect.ValueOf(wa.anyTasks())
		if rv.Kind() != reflect.Slice || idx >= rv.Len() {
			return nil, &RangeError{Message: "future: disjunction index out of range"}
		}
		return rv.Index(idx).Interface(), nil
	}
}

// callContinuation invokes fn with panic capture and maps its results onto
// (value, error) per continuationResultType's contract. A panicking
// continuation surfaces as [TaskExceptionError], the same as a panicking
// task.
func callContinuation(fn reflect.Value, args []reflect.Value) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &TaskExceptionError{Cause: PanicError{Value: r}}
		}
	}()
	results := fn.Call(args)
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		if fn.Type().Out(0) == errorType {
			err, _ := results[0].Interface().(error)
			return nil, err
		}
		return results[0].Interface(), nil
	default:
		callErr, _ := results[1].Interface().(error)
		if callErr != nil {
			return nil, callErr
		}
		return results[0].Interface(), nil
	}
}

// coerceArg adapts a dynamic value to a parameter type, substituting the
// zero value for untyped nils.
func coerceArg(v any, want reflect.Type) reflect.Value {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Zero(want)
	}
	if rv.Type() != want && rv.Type().ConvertibleTo(want) && !rv.Type().AssignableTo(want) {
		return rv.Convert(want)
	}
	return rv
}
