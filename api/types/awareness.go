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

// AwarenessMessageType is the type of a message on the awareness relay.
type AwarenessMessageType string

// Below are the messages of the awareness relay. The relay sends welcome
// once after the upgrade and states after every change; participants send
// state to publish themselves.
const (
	AwarenessWelcome AwarenessMessageType = "welcome"
	AwarenessStates  AwarenessMessageType = "states"
	AwarenessState   AwarenessMessageType = "state"
)

// AwarenessMessage is a JSON frame of the awareness relay.
type AwarenessMessage struct {
	Type AwarenessMessageType `json:"type"`

	// ConnectionID is set on welcome.
	ConnectionID ConnectionID `json:"connectionId,omitempty"`

	// States is set on states.
	States []ParticipantState `json:"states,omitempty"`

	// DisplayName and Avatar are set on state.
	DisplayName string           `json:"displayName,omitempty"`
	Avatar      AvatarPreference `json:"avatar,omitempty"`
}

// SaveRequest is the body of a batch save.
type SaveRequest struct {
	EditorID string    `json:"editorId"`
	Channels []Channel `json:"channels"`
}
