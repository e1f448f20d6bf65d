package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// idempotencyKey derives the (session_id, step_id, args_hash) key that
// lets a Tool Dispatch retry an already-completed tool_call without
// double-applying its side effect, per §4.6's at-most-once contract.
// args is marshaled with the standard library's deterministic map-key
// ordering, matching the canonical-JSON convention used across the
// runtime's typed IR.
func idempotencyKey(sessionID, stepID string, args map[string]any) string {
	canon, _ := json.Marshal(args)
	sum := sha256.Sum256(append([]byte(sessionID+"|"+stepID+"|"), canon...))
	return hex.EncodeToString(sum[:])
}
