// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ndaq

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/MIT-NRL/ndaq"
	for _, tc := range []struct {
		name    string
		info    *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "not-a-dep",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: "example.com/other", Version: "v1.0.0", Sum: "h1:other"},
				},
			},
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: root, Version: "v0.1.0", Sum: "h1:deadbeef"},
				},
			},
			version: "v0.1.0",
			sum:     "h1:deadbeef",
		},
		{
			name: "replaced-path-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: root, Version: "v0.1.0",
						Replace: &debug.Module{
							Path: "example.com/fork", Version: "v0.2.0", Sum: "h1:fork",
						},
					},
				},
			},
			version: "example.com/fork v0.2.0",
			sum:     "h1:fork",
		},
		{
			name: "replaced-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: root, Version: "v0.1.0",
						Replace: &debug.Module{Version: "v0.2.0", Sum: "h1:fork"},
					},
				},
			},
			version: "v0.2.0",
			sum:     "h1:fork",
		},
		{
			name: "replaced-by-dir",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: root, Version: "v0.1.0",
						Replace: &debug.Module{},
					},
				},
			},
			version: "v0.1.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.info)
			if version != tc.version {
				t.Errorf("invalid version: got=%q, want=%q", version, tc.version)
			}
			if sum != tc.sum {
				t.Errorf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
