package traci

import "fmt"

// Error is a status response from the SUMO side with a non-OK result
// code. Transport failures are returned as plain errors; callers that
// want to keep going after a rejected command (for example a dispatch to
// a vehicle with no route) test for this type.
type Error struct {
	Command     byte
	Result      byte
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("traci: command 0x%02x failed (code 0x%02x): %s", e.Command, e.Result, e.Description)
}
