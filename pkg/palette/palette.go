/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package palette provides the fixed set of colors assigned to participants.
package palette

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/yorkie-team/tandem/api/types"
)

// Color is a palette entry in "#rrggbb" form.
type Color = string

// Palette is an ordered list of colors. The declaration order is significant:
// it is the order in which free colors are handed out and the tie-break when
// the palette is exhausted.
type Palette []Color

// Default is the palette used by the server.
var Default = Palette{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#46f0f0", // cyan
	"#f032e6", // magenta
	"#bcf60c", // lime
	"#fabebe", // pink
	"#008080", // teal
	"#e6beff", // lavender
	"#9a6324", // brown
	"#800000", // maroon
	"#808000", // olive
	"#000075", // navy
}

// Len returns the number of colors.
func (p Palette) Len() int {
	return len(p)
}

// Index returns the declaration order of the color, or -1.
func (p Palette) Index(c Color) int {
	for i, color := range p {
		if color == c {
			return i
		}
	}
	return -1
}

// Contains returns whether the color belongs to the palette.
func (p Palette) Contains(c Color) bool {
	return p.Index(c) >= 0
}

// Candidate derives the preferred color of a participant from a stable hash
// of its connection ID and display name, so that the same participant tends
// to get the same color across reconnects.
func (p Palette) Candidate(id types.ConnectionID, displayName string) Color {
	if len(p) == 0 {
		return ""
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))

	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(displayName))

	return p[h.Sum32()%uint32(len(p))]
}
