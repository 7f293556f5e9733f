package sensor

import (
	"errors"
	"fmt"
)

// Kind identifies the channel a frame was sampled from.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindECG
	KindAccel
	KindGyro
	KindGSR
	numKinds
)

var kindNames = [numKinds]string{"invalid", "ecg", "accel", "gyro", "gsr"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if i > 0 && name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("%w %q", ErrUnknownKind, b)
}

// Frame is one reading from a wearable. Only the fields of its Kind are set.
type Frame struct {
	Kind Kind  `json:"kind"`
	Time int64 `json:"t_ms"`

	Value float64    `json:"v,omitempty"` // ECG (mV) or GSR (µS)
	Axes  [3]float64 `json:"xyz"`         // accelerometer or gyroscope
}

func ECG(t int64, v float64) Frame { return Frame{Kind: KindECG, Time: t, Value: v} }
func GSR(t int64, v float64) Frame { return Frame{Kind: KindGSR, Time: t, Value: v} }

func Accel(t int64, x, y, z float64) Frame {
	return Frame{Kind: KindAccel, Time: t, Axes: [3]float64{x, y, z}}
}

func Gyro(t int64, x, y, z float64) Frame {
	return Frame{Kind: KindGyro, Time: t, Axes: [3]float64{x, y, z}}
}

// ErrUnknownKind is returned for frames without a valid channel.
var ErrUnknownKind = errors.New("unknown sensor kind")
