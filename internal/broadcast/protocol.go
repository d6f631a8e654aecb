package broadcast

// ProtocolVersion is advertised to every subscriber on connect.
const ProtocolVersion = "1.0.0"

// Capabilities lists the message kinds this server emits.
var Capabilities = []string{"gestures", "status"}

// HelloMessage is sent once per connection immediately after upgrade.
type HelloMessage struct {
	Type         string   `json:"type"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

func newHello() HelloMessage {
	return HelloMessage{Type: "hello", Version: ProtocolVersion, Capabilities: Capabilities}
}

// GestureMetadata is the wire shape of classifier.Metadata.
type GestureMetadata struct {
	HandCenter      [2]float64 `json:"hand_center"`
	HandSize        float64    `json:"hand_size"`
	FingersExtended int        `json:"fingers_extended"`
}

// GestureMessage is emitted once per GestureEvent.
type GestureMessage struct {
	Type        string          `json:"type"`
	Gesture     string          `json:"gesture"`
	Confidence  float64         `json:"confidence"`
	HandID      int             `json:"hand_id"`
	TimestampMS int64           `json:"timestamp"`
	Metadata    GestureMetadata `json:"metadata"`
}

// StatusMessage is emitted periodically, default every second.
type StatusMessage struct {
	Type          string  `json:"type"`
	FPS           float64 `json:"fps"`
	LatencyMS     float64 `json:"latency_ms"`
	HandsDetected int     `json:"hands_detected"`
}

func newStatus(fps, latencyMS float64, handsDetected int) StatusMessage {
	return StatusMessage{Type: "status", FPS: fps, LatencyMS: latencyMS, HandsDetected: handsDetected}
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type        string `json:"type"`
	TimestampMS int64  `json:"timestamp"`
}

func newPong(timestampMS int64) PongMessage {
	return PongMessage{Type: "pong", TimestampMS: timestampMS}
}

// inboundEnvelope is used only to sniff the "type" field of a client
// message before decoding it fully.
type inboundEnvelope struct {
	Type string `json:"type"`
}

// PingMessage is a client keepalive, echoed back as PongMessage.
type PingMessage struct {
	Type        string `json:"type"`
	TimestampMS int64  `json:"timestamp"`
}

// ConfigMessage updates client-side mirroring/flip metadata. Only
// MirrorMode is semantically significant here: when true, outgoing
// metadata X coordinates are mirrored for this subscriber.
type ConfigMessage struct {
	Type        string `json:"type"`
	CameraIndex int    `json:"camera_index"`
	FlipCamera  bool   `json:"flip_camera"`
	MirrorMode  bool   `json:"mirror_mode"`
}

// ClearGestureHistoryMessage requests an atomic reset of all per-hand
// state between frames.
type ClearGestureHistoryMessage struct {
	Type string `json:"type"`
}
