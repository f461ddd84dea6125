package bus

import (
	"fmt"
	"os"
)

func debugPrint(ev Event) {
	fmt.Fprintf(os.Stderr, "[bus] #%d %s from=%s payload=%v\n", ev.ID, ev.Type, ev.Source, ev.Payload)
}

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
