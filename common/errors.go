package common

import "fmt"

// ScriptValidationError rejects a malformed scene list. It is never retried.
type ScriptValidationError struct {
	SceneID int // 0 when the problem is with the list as a whole
	Reason  string
}

func (e *ScriptValidationError) Error() string {
	if e.SceneID > 0 {
		return fmt.Sprintf("invalid scene list: scene %d: %s", e.SceneID, e.Reason)
	}
	return "invalid scene list: " + e.Reason
}
