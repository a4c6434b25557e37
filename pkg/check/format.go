package check

import (
	"fmt"
	"reflect"
)

func isInterfaceNil(val interface{}) bool {
	return val == nil ||
		(reflect.ValueOf(val).Kind() == reflect.Ptr && reflect.ValueOf(val).IsNil())
}

func internalFormat(original, indirect interface{}) string {
	if reflect.ValueOf(indirect).Kind() == reflect.Ptr && !isInterfaceNil(indirect) {
		return internalFormat(original, reflect.Indirect(reflect.ValueOf(indirect)).Interface())
	}
	if reflect.TypeOf(original) == reflect.TypeOf(indirect) {
		return fmt.Sprintf("%+v", original)
	}
	return fmt.Sprintf("%T(%+v)", original, indirect)
}

// Format renders a value for inclusion in a validation error message, unwrapping
// pointers so the message shows the pointee rather than an address.
func Format(i interface{}) string {
	return internalFormat(i, i)
}
