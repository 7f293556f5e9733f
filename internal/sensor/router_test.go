package sensor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type samples struct {
	got []float64
	err error
}

func (s *samples) Push(v float64) error {
	s.got = append(s.got, v)
	return s.err
}

func TestRouterSendsECGOnly(t *testing.T) {
	sink := &samples{}
	r := NewRouter(sink)

	frames := []Frame{
		ECG(0, 0.1),
		Accel(0, 0, 0, 9.8),
		ECG(4, 0.2),
		Gyro(4, 1, 2, 3),
		GSR(8, 2.5),
		ECG(8, 0.3),
	}
	require.NoError(t, r.RouteAll(frames))

	require.Equal(t, []float64{0.1, 0.2, 0.3}, sink.got)
	require.Equal(t, uint64(3), r.Count(KindECG))
	require.Equal(t, uint64(1), r.Count(KindAccel))
	require.Equal(t, uint64(3), r.Dropped())
}

func TestRouterHandlers(t *testing.T) {
	r := NewRouter(&samples{})
	var accel []Frame
	r.Handle(KindAccel, func(f Frame) { accel = append(accel, f) })

	require.NoError(t, r.Route(Accel(10, 1, 2, 3)))
	require.NoError(t, r.Route(GSR(10, 1)))
	require.Equal(t, []Frame{Accel(10, 1, 2, 3)}, accel)
	require.Equal(t, uint64(1), r.Dropped())

	require.Panics(t, func() { r.Handle(KindECG, func(Frame) {}) })
}

func TestRouterErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(&samples{err: boom})

	require.ErrorIs(t, r.Route(ECG(0, 1)), boom)
	require.ErrorIs(t, r.Route(Frame{}), ErrUnknownKind)
	require.ErrorIs(t, r.Route(Frame{Kind: 42}), ErrUnknownKind)
	require.Equal(t, uint64(2), r.Dropped())
	require.Zero(t, r.Count(42))
}

func TestRouteAllKeepsGoing(t *testing.T) {
	sink := &samples{}
	r := NewRouter(sink)

	err := r.RouteAll([]Frame{ECG(0, 1), {Kind: 42}, ECG(4, 2)})
	require.ErrorIs(t, err, ErrUnknownKind)
	require.Equal(t, []float64{1, 2}, sink.got)
	require.Equal(t, uint64(2), r.Count(KindECG))
}

func TestFrameJSON(t *testing.T) {
	b, err := json.Marshal(Gyro(12, 1, 0, -1))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"gyro","t_ms":12,"xyz":[1,0,-1]}`, string(b))

	var f Frame
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"ecg","t_ms":4,"v":0.5}`), &f))
	require.Equal(t, ECG(4, 0.5), f)

	require.ErrorIs(t, json.Unmarshal([]byte(`{"kind":"eeg"}`), &f), ErrUnknownKind)
	require.Equal(t, "kind(9)", Kind(9).String())
}
