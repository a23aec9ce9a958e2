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

package types

import (
	"strconv"
)

// ConnectionID identifies one live connection to a session. It is assigned
// by the awareness relay and is unique within a process.
type ConnectionID uint64

// String returns the decimal representation of this ID.
func (id ConnectionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// AvatarPreference is how a participant wants to be pictured.
type AvatarPreference string

// Below are the avatar preferences a participant can choose.
const (
	AvatarInitials  AvatarPreference = "initials"
	AvatarIdenticon AvatarPreference = "identicon"
	AvatarImage     AvatarPreference = "image"
)

// Valid returns whether the preference is one of the known values. The empty
// value is accepted and treated as AvatarInitials.
func (p AvatarPreference) Valid() bool {
	switch p {
	case "", AvatarInitials, AvatarIdenticon, AvatarImage:
		return true
	default:
		return false
	}
}

// ParticipantState is the ephemeral state a participant publishes to the
// other participants of a session. It lives only as long as the connection.
type ParticipantState struct {
	ConnectionID ConnectionID     `json:"connectionId"`
	DisplayName  string           `json:"displayName,omitempty"`
	Avatar       AvatarPreference `json:"avatar,omitempty"`
	Color        string           `json:"color,omitempty"`
}
