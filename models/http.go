// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// PushRequest is the POST body sent to a per-store sync endpoint. Token is
// the envelope-encoded snapshot; the remaining fields let the server apply
// its optimistic version check without decoding the token.
type PushRequest struct {
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
	Version   int64  `json:"version"`
	Checksum  string `json:"checksum"`
	ClientID  string `json:"clientId"`
}

// PushResponse is the server's answer to a push. When Conflict is true the
// server's copy was newer than the submitted snapshot; ServerToken then
// optionally carries the server-side token so the client can resolve locally.
type PushResponse struct {
	Timestamp   int64  `json:"timestamp"`
	Version     int64  `json:"version"`
	Conflict    bool   `json:"conflict"`
	ServerToken string `json:"serverToken,omitempty"`
}

// PullResponse is the GET body returned by a per-store sync endpoint when a
// snapshot exists. Absence of a snapshot is signalled by HTTP 204, not by an
// empty body.
type PullResponse struct {
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
	Version   int64  `json:"version"`
	Checksum  string `json:"checksum"`
}
