// Package ipc handles inter-process communication between the daemon
// and control clients over a Unix domain socket.
package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents the type of command.
type CommandType string

const (
	CmdPair              CommandType = "pair"
	CmdStatus            CommandType = "status"
	CmdGetConfig         CommandType = "getConfig"
	CmdSetConfig         CommandType = "setConfig"
	CmdSetMode           CommandType = "setMode"
	CmdSetThreshold      CommandType = "setThreshold"
	CmdListClients       CommandType = "listClients"
	CmdRevokeClient      CommandType = "revokeClient"
	CmdSubscribeStatus   CommandType = "subscribeStatus"
	CmdUnsubscribeStatus CommandType = "unsubscribeStatus"
)

// PushMessage represents a server-initiated message (no request needed).
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request.
type Request struct {
	Cmd   CommandType     `json:"cmd"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PairRequest is the data for a pair command.
type PairRequest struct {
	ClientName string `json:"clientName"`
}

// PairResponse is the response to a pair command.
type PairResponse struct {
	Token            string `json:"token"`
	ClientID         string `json:"clientId"`
	RequiresApproval bool   `json:"requiresApproval"`
}

// StatusResponse is the response to a status command: a snapshot of
// every running component's most recent readings.
type StatusResponse struct {
	Mode           string  `json:"mode"`
	TempoHz        float64 `json:"tempoHz"`
	BPM            float64 `json:"bpm"`
	HitCount       uint64  `json:"hitCount"`
	LastPrediction float64 `json:"lastPrediction"`
	Threshold      float64 `json:"threshold"`
	SpectralDrift  bool    `json:"spectralDrift"`
	SpectralRadius float64 `json:"spectralRadius"`
}

// SetModeRequest is the data for a setMode command.
type SetModeRequest struct {
	Mode string `json:"mode"` // "drum-midi", "drum-robot", "cc", "arpeggio"
}

// SetThresholdRequest is the data for a setThreshold command.
type SetThresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

// ConfigResponse is the response to a getConfig command.
type ConfigResponse struct {
	DataDir         string  `json:"dataDir"`
	ModelName       string  `json:"modelName"`
	Granularity     string  `json:"granularity"`
	Subdivision     int     `json:"subdivision"`
	Threshold       float64 `json:"threshold"`
	ToleranceFactor float64 `json:"toleranceFactor"`
	WaveType        string  `json:"waveType"`
}

// ConfigRequest is the data for a setConfig command; nil fields leave
// the corresponding setting unchanged.
type ConfigRequest struct {
	ModelName       *string  `json:"modelName,omitempty"`
	Subdivision     *int     `json:"subdivision,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	ToleranceFactor *float64 `json:"toleranceFactor,omitempty"`
	WaveType        *string  `json:"waveType,omitempty"`
}

// ClientInfoResponse describes one paired client.
type ClientInfoResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`  // Unix seconds
	LastSeenAt int64  `json:"lastSeenAt"` // Unix seconds; pairing time until first validation, 0 if the stored record has none
}

// ListClientsResponse is the response to a listClients command.
type ListClientsResponse struct {
	Clients []ClientInfoResponse `json:"clients"`
}

// RevokeClientRequest is the data for a revokeClient command.
type RevokeClientRequest struct {
	ClientID string `json:"clientId"`
}

// EncodeRequest encodes a request to JSON.
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON.
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data.
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}
