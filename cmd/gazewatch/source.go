package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/detector"
	"github.com/gazewatch/gazewatch/internal/source/camera"
	"github.com/gazewatch/gazewatch/internal/source/imagedir"
	"github.com/gazewatch/gazewatch/internal/source/replay"
	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
)

// pipeline is the frame source, landmark detector and operator input of one run.
type pipeline struct {
	Source   vision.FrameSource
	Detector vision.Detector
	Triggers trigger.Source
	Name     string

	tee *replay.Tee
}

// Close flushes the landmark recording, if any. The frame source is owned
// and closed by the session.
func (p *pipeline) Close() error {
	if p.tee == nil {
		return nil
	}
	return p.tee.Close()
}

func openPipeline(ctx context.Context, srcCfg config.SourceConfig, detCfg config.DetectorConfig, stdin io.Reader, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{Name: srcCfg.Type}

	var replaySrc *replay.Source
	switch srcCfg.Type {
	case "replay":
		src, err := replay.Open(srcCfg.Path)
		if err != nil {
			return nil, err
		}
		replaySrc = src
		p.Source = src
		p.Name = "replay:" + srcCfg.Path

	case "imagedir":
		src, err := imagedir.Open(imagedir.Config{
			Dir:      srcCfg.Path,
			Mirror:   srcCfg.Mirror,
			Interval: srcCfg.Interval,
		})
		if err != nil {
			return nil, err
		}
		p.Source = src
		p.Name = "imagedir:" + srcCfg.Path

	case "camera":
		src, err := camera.Open(camera.Config{
			Device:      srcCfg.Device,
			Width:       srcCfg.Width,
			Height:      srcCfg.Height,
			Mirror:      srcCfg.Mirror,
			ReadTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		p.Source = src
		p.Name = fmt.Sprintf("camera:%d", srcCfg.Device)

	default:
		return nil, fmt.Errorf("%w: unknown source type %q", config.ErrInvalid, srcCfg.Type)
	}

	// Replayed frames carry their landmarks; everything else needs the sidecar.
	p.Detector = vision.EmbeddedDetector{}
	if replaySrc == nil {
		if detCfg.URL == "" {
			logger.Warn("No detector configured, every frame will read as no face", "source", srcCfg.Type)
		} else {
			client := detector.New(detCfg.URL, detCfg.Timeout)
			if err := client.Healthcheck(ctx); err != nil {
				logger.Warn("Landmark detector is offline", "url", detCfg.URL, "error", err)
			} else {
				logger.Info("Landmark detector is online", "url", detCfg.URL)
			}
			p.Detector = client
		}
	}

	switch srcCfg.Trigger {
	case "recording":
		if replaySrc == nil {
			_ = p.Source.Close()
			return nil, fmt.Errorf("%w: recording triggers need a replay source", config.ErrInvalid)
		}
		p.Triggers = replaySrc
	case "none":
		p.Triggers = trigger.Never
	default:
		if stdin == nil {
			stdin = os.Stdin
		}
		p.Triggers = trigger.NewKeyboard(stdin)
	}

	// The tee sits between the session and both the detector and the
	// triggers so every frame is written with the input polled after it.
	if srcCfg.Record != "" {
		rec, err := replay.Create(srcCfg.Record)
		if err != nil {
			_ = p.Source.Close()
			return nil, err
		}
		p.tee = &replay.Tee{Detector: p.Detector, Triggers: p.Triggers, Recorder: rec}
		p.Detector = p.tee
		p.Triggers = p.tee
		logger.Info("Recording landmarks", "path", srcCfg.Record)
	}

	return p, nil
}
