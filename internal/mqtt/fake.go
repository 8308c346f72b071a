package mqtt

import (
	"github.com/sweeney/cloudcover-switch/internal/logic"
)

// FakePublisher keeps everything it is asked to publish, alongside the JSON
// that RealPublisher would have sent for it.
type FakePublisher struct {
	Reports        []logic.CycleReport
	Payloads       [][]byte
	Diagnostics    []Diagnostics
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError fails Publish and PublishDiagnostics; PublishSystemError
	// fails PublishSystem. Nothing is recorded on failure.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher returns a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

func (f *FakePublisher) Publish(report logic.CycleReport) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(report)
	if err != nil {
		return err
	}
	f.Reports = append(f.Reports, report)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishDiagnostics(d Diagnostics) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Diagnostics = append(f.Diagnostics, d)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}
