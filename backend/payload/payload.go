package payload

import "encoding/json"

// Payload is a serialized input or result. Payloads are stored verbatim in the history.
type Payload = json.RawMessage
