// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package log installs this module's standard logging pipeline: a
// level-split stdout/stderr hook, an optional rotating on-disk log
// file, and an optional Sentry hook for error-and-above entries.
package log

import (
	"io"
	"time"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/getsentry/sentry-go"
	"github.com/matrix-org/dugong"
	"github.com/sirupsen/logrus"
)

// Setup installs the hooks described above onto logrus's standard
// logger. logDir may be empty to skip the on-disk hook; sentryDSN may
// be empty to skip Sentry reporting entirely.
func Setup(logDir, sentryDSN string) error {
	logrus.SetOutput(io.Discard)
	logrus.AddHook(stdemuxerhook.New(logrus.StandardLogger()))

	if logDir != "" {
		hook := dugong.NewFSHook(logDir, &logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000",
			FullTimestamp:   true,
		}, &dugong.DailyRotationSchedule{
			GZip: true,
		})
		logrus.AddHook(hook)
	}

	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN}); err != nil {
			return err
		}
		logrus.AddHook(&sentryHook{})
	}
	return nil
}

// sentryHook reports every Error-level-and-above logrus entry to
// Sentry, so a panic recovered and logged anywhere in this module
// still reaches the error tracker.
type sentryHook struct{}

func (h *sentryHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

func (h *sentryHook) Fire(e *logrus.Entry) error {
	if err, ok := e.Data[logrus.ErrorKey].(error); ok {
		sentry.CaptureException(err)
	} else {
		sentry.CaptureMessage(e.Message)
	}
	return nil
}

// Flush blocks up to timeout waiting for Sentry to deliver any
// buffered events; callers should defer it at process shutdown.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
