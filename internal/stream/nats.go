package stream

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects shared by the producer, processor and server. MQTT topics use
// the same names with dots replaced by slashes.
const (
	SubjectWave   = "ecg.wave"   // float32 little-endian sample batches
	SubjectFrames = "ecg.frames" // JSON sensor frames from multi-channel wearables
	SubjectBeats  = "ecg.beats"
	SubjectHRV    = "ecg.hrv"
)

func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}
