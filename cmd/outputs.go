package main

import (
	"fmt"
	"log"

	"github.com/richinsley/lightv/config"
	"github.com/richinsley/lightv/framerelay"
	"github.com/richinsley/lightv/output"
	"github.com/richinsley/lightv/renderer"
)

// readbackBuffers is the PBO ring depth for captured output.
const readbackBuffers = 3

// outputs captures the mixed frame for -record and -publish. With neither
// set it does nothing.
type outputs struct {
	fan     output.Fanout
	capture *output.Capture
}

func newOutputs(cfg *config.Config) (*outputs, error) {
	o := &outputs{}
	if cfg.Record != "" {
		rec, err := output.NewRecorder(output.RecorderOptions{
			Path:       cfg.Record,
			FFmpegPath: cfg.FFmpegPath,
			ExtraArgs:  cfg.FFmpegArgs,
			Codec:      cfg.Codec,
			FPS:        cfg.FPS,
			Width:      cfg.Width,
			Height:     cfg.Height,
			Software:   !cfg.HWEncode,
		})
		if err != nil {
			return nil, err
		}
		o.fan.Add("record", rec)
	}
	if cfg.Publish != "" {
		pub, err := newPublisher(cfg)
		if err != nil {
			o.fan.Close()
			return nil, err
		}
		o.fan.Add("publish", output.NewRelaySink(pub))
	}
	if o.fan.Len() == 0 {
		return o, nil
	}
	capture, err := output.NewCapture(&o.fan, readbackBuffers)
	if err != nil {
		o.fan.Close()
		return nil, err
	}
	o.capture = capture
	return o, nil
}

func newPublisher(cfg *config.Config) (output.Publisher, error) {
	kind, target, err := config.ParsePublish(cfg.Publish)
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.RelaySHM:
		p, err := framerelay.NewSHMPublisher(cfg.Relay.Dir, cfg.Relay.Prefix, target, cfg.Width, cfg.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to create shm publisher: %w", err)
		}
		return p, nil
	default:
		return framerelay.Dial(target)
	}
}

func (o *outputs) Grab(t *renderer.Target) {
	if o.capture == nil {
		return
	}
	if err := o.capture.Grab(t); err != nil {
		log.Printf("Output: %v", err)
	}
}

func (o *outputs) Close() error {
	if o.capture == nil {
		return nil
	}
	return o.capture.Destroy()
}
