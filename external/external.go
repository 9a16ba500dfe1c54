// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package external collects small helpers shared by every other package
// in this module that aren't specific to any one of them.
package external

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// CloseAndLogIfError closes c and logs any error it returns using the
// logger scoped to ctx. Storage code defers this on *sql.Rows so that a
// close failure is never silently dropped but also never turned into the
// caller's returned error, matching how every other table implementation
// in this module handles it.
func CloseAndLogIfError(ctx context.Context, c io.Closer, message string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logrus.WithContext(ctx).WithError(err).Error(message)
	}
}
