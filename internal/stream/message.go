package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivanzxc/go-realtime-ecg/internal/analysis"
)

// BeatMsg is the JSON form of a finished beat.
type BeatMsg struct {
	Session string `json:"session"`
	Subject string `json:"subject"`
	Ts      int64  `json:"ts"`
	analysis.Beat
}

// HRVMsg is the JSON form of an HRV batch.
type HRVMsg struct {
	Session string `json:"session"`
	Subject string `json:"subject"`
	Ts      int64  `json:"ts"`
	analysis.HRV
}

// NewSession returns an identifier for one processor run.
func NewSession() string { return uuid.NewString() }

// Topic maps a NATS subject to an MQTT topic.
func Topic(subject string) string { return strings.ReplaceAll(subject, ".", "/") }

// Publisher sends beats and HRV batches as JSON. It implements
// analysis.BeatSink and analysis.BatchSink.
type Publisher struct {
	session string
	send    func(subject string, payload []byte) error
	now     func() time.Time
}

func (p *Publisher) WriteBeat(b analysis.Beat) error {
	return p.publish(SubjectBeats, BeatMsg{
		Session: p.session,
		Subject: SubjectBeats,
		Ts:      p.now().UnixMilli(),
		Beat:    b,
	})
}

func (p *Publisher) WriteHRV(h analysis.HRV) error {
	return p.publish(SubjectHRV, HRVMsg{
		Session: p.session,
		Subject: SubjectHRV,
		Ts:      p.now().UnixMilli(),
		HRV:     h,
	})
}

func (p *Publisher) publish(subject string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", subject, err)
	}
	if err := p.send(subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Session() string { return p.session }
