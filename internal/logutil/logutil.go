// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logutil holds logging helpers shared by the protocol packages.
package logutil

import (
	"io"

	"github.com/sirupsen/logrus"
)

// OrDiscard returns l, or a logger that discards everything if l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	d := logrus.New()
	d.SetOutput(io.Discard)
	return d
}
